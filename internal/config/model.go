package config

import (
	"fmt"
	"os"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

// Model providers. Any other go-agents provider name is rejected.
const (
	ProviderOllama = "ollama"
	ProviderAzure  = "azure"
	ProviderNone   = "none"
)

const (
	EnvModelProvider   = "TRIAGE_MODEL_PROVIDER"
	EnvModelBaseURL    = "TRIAGE_MODEL_BASE_URL"
	EnvModelName       = "TRIAGE_MODEL_NAME"
	EnvModelToken      = "TRIAGE_MODEL_TOKEN"
	EnvModelDeployment = "TRIAGE_MODEL_DEPLOYMENT"
	EnvModelAPIVersion = "TRIAGE_MODEL_API_VERSION"
	EnvModelAuthType   = "TRIAGE_MODEL_AUTH_TYPE"
	EnvModelTimeout    = "TRIAGE_MODEL_TIMEOUT"
	EnvModelRateLimit  = "TRIAGE_MODEL_RATE_LIMIT"
	EnvModelBurst      = "TRIAGE_MODEL_BURST"
)

// ModelConfig configures the fallback language model.
// The file-level fields seed Agent, which is the finalized go-agents
// configuration handed to the generator.
type ModelConfig struct {
	Name      string  `toml:"name"`
	Provider  string  `toml:"provider"`
	BaseURL   string  `toml:"base_url"`
	Model     string  `toml:"model"`
	Timeout   string  `toml:"timeout"`
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`

	Agent gaconfig.AgentConfig `toml:"-"`
}

// Enabled reports whether a provider is configured.
func (c *ModelConfig) Enabled() bool {
	return c.Provider != ProviderNone
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *ModelConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
// The agent section goes through FinalizeAgent and its result is reflected
// back onto Provider, BaseURL, and Model.
func (c *ModelConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	c.Agent = gaconfig.AgentConfig{
		Name: c.Name,
		Provider: &gaconfig.ProviderConfig{
			Name:    c.Provider,
			BaseURL: c.BaseURL,
			Options: make(map[string]any),
		},
		Model: &gaconfig.ModelConfig{Name: c.Model},
	}
	if err := FinalizeAgent(&c.Agent); err != nil {
		return fmt.Errorf("agent: %w", err)
	}

	c.Provider = c.Agent.Provider.Name
	c.BaseURL = c.Agent.Provider.BaseURL
	c.Model = c.Agent.Model.Name

	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ModelConfig) Merge(overlay *ModelConfig) {
	mergeString(&c.Name, overlay.Name)
	mergeString(&c.Provider, overlay.Provider)
	mergeString(&c.BaseURL, overlay.BaseURL)
	mergeString(&c.Model, overlay.Model)
	mergeString(&c.Timeout, overlay.Timeout)
	if overlay.RateLimit != 0 {
		c.RateLimit = overlay.RateLimit
	}
	if overlay.Burst != 0 {
		c.Burst = overlay.Burst
	}
}

func (c *ModelConfig) loadDefaults() {
	if c.Name == "" {
		c.Name = "triage-fallback"
	}
	if c.Provider == "" {
		c.Provider = ProviderOllama
	}
	if c.BaseURL == "" && c.Provider == ProviderOllama {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = "llama3.2"
	}
	if c.Timeout == "" {
		c.Timeout = "10s"
	}
	if c.Burst == 0 {
		c.Burst = 1
	}
}

func (c *ModelConfig) loadEnv() {
	envString(&c.Timeout, EnvModelTimeout)
	envFloat(&c.RateLimit, EnvModelRateLimit)
	envInt(&c.Burst, EnvModelBurst)
}

func (c *ModelConfig) validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderAzure, ProviderNone:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}
	return nil
}

// FinalizeAgent runs the three-phase finalize over a go-agents AgentConfig:
// DefaultAgentConfig defaults, TRIAGE_MODEL_* overrides, and validation.
func FinalizeAgent(c *gaconfig.AgentConfig) error {
	loadAgentDefaults(c)
	loadAgentEnv(c)
	return validateAgent(c)
}

func loadAgentDefaults(c *gaconfig.AgentConfig) {
	defaults := gaconfig.DefaultAgentConfig()
	defaults.Merge(c)
	*c = defaults
}

func loadAgentEnv(c *gaconfig.AgentConfig) {
	if c.Provider == nil {
		c.Provider = &gaconfig.ProviderConfig{}
	}
	if c.Provider.Options == nil {
		c.Provider.Options = make(map[string]any)
	}
	if c.Model == nil {
		c.Model = &gaconfig.ModelConfig{}
	}
	if v := os.Getenv(EnvModelProvider); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv(EnvModelBaseURL); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv(EnvModelName); v != "" {
		c.Model.Name = v
	}

	setOption := func(envVar, key string) {
		if v := os.Getenv(envVar); v != "" {
			c.Provider.Options[key] = v
		}
	}

	setOption(EnvModelToken, "token")
	setOption(EnvModelDeployment, "deployment")
	setOption(EnvModelAPIVersion, "api_version")
	setOption(EnvModelAuthType, "auth_type")
}

func validateAgent(c *gaconfig.AgentConfig) error {
	if c.Name == "" {
		return fmt.Errorf("name required")
	}
	if c.Provider == nil {
		return fmt.Errorf("provider required")
	}
	if c.Provider.Name == "" {
		return fmt.Errorf("provider name required")
	}
	if c.Model == nil {
		return fmt.Errorf("model required")
	}
	return nil
}
