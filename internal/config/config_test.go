package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/triage/internal/config"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
host = "0.0.0.0"
port = 8080

[database]
host = "localhost"
name = "triage"
user = "triage"

[api]
base_path = "/api"

[api.pagination]
default_page_size = 25
max_page_size = 50

[engine]
threshold = 0.7
short_unit = "30m"

[model]
provider = "ollama"
model = "llama3.1:8b"

[scheduler]
interval = "30s"
`

const overlayConfig = `
[server]
port = 9090

[database]
host = "prodhost"

[model]
provider = "none"
`

func writeConfig(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	t.Chdir(dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.API.Pagination.DefaultPageSize != 25 {
		t.Errorf("pagination default_page_size: got %d, want 25", cfg.API.Pagination.DefaultPageSize)
	}
	if cfg.Engine.Threshold != 0.7 {
		t.Errorf("engine threshold: got %v, want 0.7", cfg.Engine.Threshold)
	}
	if cfg.Engine.ShortUnitDuration() != 30*time.Minute {
		t.Errorf("engine short_unit: got %v, want 30m", cfg.Engine.ShortUnitDuration())
	}
	if cfg.Engine.LongUnitDuration() != 24*time.Hour {
		t.Errorf("engine long_unit: got %v, want 24h", cfg.Engine.LongUnitDuration())
	}
	if cfg.Model.Model != "llama3.1:8b" {
		t.Errorf("model: got %s, want llama3.1:8b", cfg.Model.Model)
	}
	if cfg.Scheduler.IntervalDuration() != 30*time.Second {
		t.Errorf("scheduler interval: got %v, want 30s", cfg.Scheduler.IntervalDuration())
	}
}

func TestLoadWithOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	writeConfig(t, dir, "config.staging.toml", overlayConfig)
	t.Chdir(dir)
	t.Setenv("TRIAGE_ENV", "staging")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090 (from overlay)", cfg.Server.Port)
	}
	if cfg.Database.Host != "prodhost" {
		t.Errorf("db host: got %s, want prodhost (from overlay)", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("db port: got %d, want 5432 (default)", cfg.Database.Port)
	}
	if cfg.Model.Provider != config.ProviderNone {
		t.Errorf("model provider: got %s, want none (from overlay)", cfg.Model.Provider)
	}
	if cfg.Env() != "staging" {
		t.Errorf("env: got %s, want staging", cfg.Env())
	}
}

func TestLoadEnvVarOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	t.Chdir(dir)

	t.Setenv("TRIAGE_VERSION", "2.0.0")
	t.Setenv("TRIAGE_SERVER_PORT", "3000")
	t.Setenv("TRIAGE_ENGINE_THRESHOLD", "0.5")
	t.Setenv("TRIAGE_SCHEDULER_ENABLED", "false")
	t.Setenv("TRIAGE_LOG_FORMAT", "JSON")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server port: got %d, want 3000", cfg.Server.Port)
	}
	if cfg.Engine.Threshold != 0.5 {
		t.Errorf("engine threshold: got %v, want 0.5", cfg.Engine.Threshold)
	}
	if cfg.Scheduler.IsEnabled() {
		t.Error("scheduler should be disabled from env")
	}
	if cfg.Logging.Format != config.LogFormatJSON {
		t.Errorf("log format: got %s, want json", cfg.Logging.Format)
	}
}

func TestLoadExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "triage.toml", baseConfig)
	t.Chdir(t.TempDir())
	t.Setenv("TRIAGE_CONFIG", path)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Engine.Threshold != 0.7 {
		t.Errorf("engine threshold: got %v, want 0.7", cfg.Engine.Threshold)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TRIAGE_DB_NAME", "testdb")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load without config.toml failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"server port", cfg.Server.Port, 8080},
		{"db name", cfg.Database.Name, "testdb"},
		{"base path", cfg.API.BasePath, "/api"},
		{"max body", cfg.API.MaxBodySizeBytes(), int64(1024 * 1024)},
		{"threshold", cfg.Engine.Threshold, 0.6},
		{"high risk", cfg.Engine.HighRisk, 0.8},
		{"watching", cfg.Engine.Watching(), false},
		{"rule cache ttl", cfg.Engine.RuleCacheTTLDuration(), 30 * time.Second},
		{"model provider", cfg.Model.Provider, config.ProviderOllama},
		{"model timeout", cfg.Model.TimeoutDuration(), 10 * time.Second},
		{"scheduler workers", cfg.Scheduler.Workers, 4},
		{"scheduler enabled", cfg.Scheduler.IsEnabled(), true},
		{"metrics path", cfg.Metrics.Path, "/metrics"},
		{"metrics enabled", cfg.Metrics.IsEnabled(), true},
		{"log level", cfg.Logging.Level, "info"},
		{"shutdown timeout", cfg.ShutdownTimeoutDuration(), 30 * time.Second},
		{"env", cfg.Env(), "local"},
		{"addr", cfg.Server.Addr(), "0.0.0.0:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", `server = {`)
	t.Chdir(dir)

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestWatchingRequiresRulesPath(t *testing.T) {
	watch := true
	cfg := config.EngineConfig{WatchRules: &watch}
	if cfg.Watching() {
		t.Error("Watching() should be false without rules_path")
	}
	cfg.RulesPath = "rules.yaml"
	if !cfg.Watching() {
		t.Error("Watching() should be true with rules_path and watch_rules")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{"invalid port", "[server]\nport = 99999", "invalid port"},
		{"invalid read_timeout", "[server]\nread_timeout = \"bad\"", "invalid read_timeout"},
		{"invalid shutdown_timeout", "shutdown_timeout = \"bad\"", "invalid shutdown_timeout"},
		{"threshold out of range", "[engine]\nthreshold = 1.5", "threshold"},
		{"negative short_unit", "[engine]\nshort_unit = \"-1h\"", "short_unit must be positive"},
		{"unknown provider", "[model]\nprovider = \"openai\"", "unknown provider"},
		{"negative rate limit", "[model]\nrate_limit = -1.0", "rate_limit"},
		{"zero interval", "[scheduler]\ninterval = \"0s\"", "interval must be positive"},
		{"bad log level", "[logging]\nlevel = \"loud\"", "invalid level"},
		{"bad log format", "[logging]\nformat = \"xml\"", "invalid format"},
		{"metrics path", "[metrics]\npath = \"metrics\"", "path must start with /"},
		{"max body", "[api]\nmax_body_size = \"huge\"", "max_body_size"},
		{"pagination", "[api.pagination]\ndefault_page_size = 500", "exceeds max_page_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, "config.toml", tt.config)
			t.Chdir(dir)

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestMergePreservesBase(t *testing.T) {
	enabled := false
	base := &config.Config{
		Server:    config.ServerConfig{Host: "0.0.0.0", Port: 8080},
		Scheduler: config.SchedulerConfig{Interval: "1m", Workers: 4},
	}
	base.Merge(&config.Config{
		Server:    config.ServerConfig{Port: 9000},
		Scheduler: config.SchedulerConfig{Enabled: &enabled},
	})

	if base.Server.Host != "0.0.0.0" || base.Server.Port != 9000 {
		t.Errorf("server = %+v", base.Server)
	}
	if base.Scheduler.IsEnabled() || base.Scheduler.Workers != 4 {
		t.Errorf("scheduler = %+v", base.Scheduler)
	}
}

func TestModelAgentConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	t.Chdir(dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	agent := cfg.Model.Agent
	if agent.Name != "triage-fallback" {
		t.Errorf("agent name: got %s, want triage-fallback", agent.Name)
	}
	if agent.Provider == nil || agent.Provider.Name != "ollama" {
		t.Fatalf("agent provider: got %+v, want ollama", agent.Provider)
	}
	if agent.Provider.BaseURL != "http://localhost:11434" {
		t.Errorf("provider base_url: got %s, want http://localhost:11434", agent.Provider.BaseURL)
	}
	if agent.Model == nil || agent.Model.Name != "llama3.1:8b" {
		t.Errorf("agent model: got %+v, want llama3.1:8b", agent.Model)
	}
}

func TestModelAgentEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	t.Chdir(dir)

	t.Setenv("TRIAGE_MODEL_PROVIDER", "azure")
	t.Setenv("TRIAGE_MODEL_BASE_URL", "https://practice.openai.azure.com")
	t.Setenv("TRIAGE_MODEL_NAME", "gpt-5-mini")
	t.Setenv("TRIAGE_MODEL_TOKEN", "test-token")
	t.Setenv("TRIAGE_MODEL_DEPLOYMENT", "triage")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Model.Provider != config.ProviderAzure {
		t.Errorf("provider: got %s, want azure", cfg.Model.Provider)
	}
	if cfg.Model.BaseURL != "https://practice.openai.azure.com" {
		t.Errorf("base_url: got %s", cfg.Model.BaseURL)
	}
	if cfg.Model.Agent.Model.Name != "gpt-5-mini" {
		t.Errorf("model name: got %s, want gpt-5-mini", cfg.Model.Agent.Model.Name)
	}
	opts := cfg.Model.Agent.Provider.Options
	if opts["token"] != "test-token" {
		t.Errorf("token option: got %v, want test-token", opts["token"])
	}
	if opts["deployment"] != "triage" {
		t.Errorf("deployment option: got %v, want triage", opts["deployment"])
	}
}
