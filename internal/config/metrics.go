package config

import (
	"fmt"
	"strings"
)

const (
	EnvMetricsEnabled = "TRIAGE_METRICS_ENABLED"
	EnvMetricsPath    = "TRIAGE_METRICS_PATH"
)

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled *bool  `toml:"enabled"`
	Path    string `toml:"path"`
}

// IsEnabled reports whether metrics are exposed.
func (c *MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *MetricsConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path must start with /: %s", c.Path)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *MetricsConfig) Merge(overlay *MetricsConfig) {
	if overlay.Enabled != nil {
		c.Enabled = overlay.Enabled
	}
	mergeString(&c.Path, overlay.Path)
}

func (c *MetricsConfig) loadDefaults() {
	if c.Enabled == nil {
		c.Enabled = boolPtr(true)
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

func (c *MetricsConfig) loadEnv() {
	envBool(&c.Enabled, EnvMetricsEnabled)
	envString(&c.Path, EnvMetricsPath)
}
