package config

import (
	"fmt"
	"time"
)

const (
	EnvEngineThreshold    = "TRIAGE_ENGINE_THRESHOLD"
	EnvEngineRulesPath    = "TRIAGE_ENGINE_RULES_PATH"
	EnvEngineWatchRules   = "TRIAGE_ENGINE_WATCH_RULES"
	EnvEngineRuleCacheTTL = "TRIAGE_ENGINE_RULE_CACHE_TTL"
	EnvEngineShortUnit    = "TRIAGE_ENGINE_SHORT_UNIT"
	EnvEngineLongUnit     = "TRIAGE_ENGINE_LONG_UNIT"
	EnvEngineHighRisk     = "TRIAGE_ENGINE_HIGH_RISK"
)

// EngineConfig tunes classification and deadline policy.
type EngineConfig struct {
	// Threshold is the heuristic confidence below which the model fallback runs.
	Threshold float64 `toml:"threshold"`
	// RulesPath names a YAML pattern pack. Empty uses the embedded pack.
	RulesPath    string `toml:"rules_path"`
	WatchRules   *bool  `toml:"watch_rules"`
	RuleCacheTTL string `toml:"rule_cache_ttl"`
	// ShortUnit is one deadline step for STAT and TODAY, LongUnit for
	// THIS_WEEK and LATER.
	ShortUnit string  `toml:"short_unit"`
	LongUnit  string  `toml:"long_unit"`
	HighRisk  float64 `toml:"high_risk"`
}

// Watching reports whether a file-based pattern pack is reloaded on change.
func (c *EngineConfig) Watching() bool {
	return c.RulesPath != "" && c.WatchRules != nil && *c.WatchRules
}

// RuleCacheTTLDuration returns RuleCacheTTL as a time.Duration.
func (c *EngineConfig) RuleCacheTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.RuleCacheTTL)
	return d
}

// ShortUnitDuration returns ShortUnit as a time.Duration.
func (c *EngineConfig) ShortUnitDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShortUnit)
	return d
}

// LongUnitDuration returns LongUnit as a time.Duration.
func (c *EngineConfig) LongUnitDuration() time.Duration {
	d, _ := time.ParseDuration(c.LongUnit)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *EngineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *EngineConfig) Merge(overlay *EngineConfig) {
	if overlay.Threshold != 0 {
		c.Threshold = overlay.Threshold
	}
	if overlay.HighRisk != 0 {
		c.HighRisk = overlay.HighRisk
	}
	if overlay.WatchRules != nil {
		c.WatchRules = overlay.WatchRules
	}
	mergeString(&c.RulesPath, overlay.RulesPath)
	mergeString(&c.RuleCacheTTL, overlay.RuleCacheTTL)
	mergeString(&c.ShortUnit, overlay.ShortUnit)
	mergeString(&c.LongUnit, overlay.LongUnit)
}

func (c *EngineConfig) loadDefaults() {
	if c.Threshold == 0 {
		c.Threshold = 0.6
	}
	if c.WatchRules == nil {
		c.WatchRules = boolPtr(false)
	}
	if c.RuleCacheTTL == "" {
		c.RuleCacheTTL = "30s"
	}
	if c.ShortUnit == "" {
		c.ShortUnit = "1h"
	}
	if c.LongUnit == "" {
		c.LongUnit = "24h"
	}
	if c.HighRisk == 0 {
		c.HighRisk = 0.8
	}
}

func (c *EngineConfig) loadEnv() {
	envFloat(&c.Threshold, EnvEngineThreshold)
	envString(&c.RulesPath, EnvEngineRulesPath)
	envBool(&c.WatchRules, EnvEngineWatchRules)
	envString(&c.RuleCacheTTL, EnvEngineRuleCacheTTL)
	envString(&c.ShortUnit, EnvEngineShortUnit)
	envString(&c.LongUnit, EnvEngineLongUnit)
	envFloat(&c.HighRisk, EnvEngineHighRisk)
}

func (c *EngineConfig) validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in (0, 1]: %v", c.Threshold)
	}
	if c.HighRisk <= 0 || c.HighRisk > 1 {
		return fmt.Errorf("high_risk must be in (0, 1]: %v", c.HighRisk)
	}
	for name, v := range map[string]string{
		"rule_cache_ttl": c.RuleCacheTTL,
		"short_unit":     c.ShortUnit,
		"long_unit":      c.LongUnit,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
