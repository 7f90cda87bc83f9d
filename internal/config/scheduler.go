package config

import (
	"fmt"
	"time"
)

const (
	EnvSchedulerEnabled  = "TRIAGE_SCHEDULER_ENABLED"
	EnvSchedulerInterval = "TRIAGE_SCHEDULER_INTERVAL"
	EnvSchedulerWorkers  = "TRIAGE_SCHEDULER_WORKERS"
)

// SchedulerConfig configures the escalation sweep loop.
type SchedulerConfig struct {
	Enabled  *bool  `toml:"enabled"`
	Interval string `toml:"interval"`
	Workers  int    `toml:"workers"`
}

// IsEnabled reports whether the server runs the sweep loop.
func (c *SchedulerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// IntervalDuration returns Interval as a time.Duration.
func (c *SchedulerConfig) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.Interval)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *SchedulerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *SchedulerConfig) Merge(overlay *SchedulerConfig) {
	if overlay.Enabled != nil {
		c.Enabled = overlay.Enabled
	}
	mergeString(&c.Interval, overlay.Interval)
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
}

func (c *SchedulerConfig) loadDefaults() {
	if c.Enabled == nil {
		c.Enabled = boolPtr(true)
	}
	if c.Interval == "" {
		c.Interval = "1m"
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
}

func (c *SchedulerConfig) loadEnv() {
	envBool(&c.Enabled, EnvSchedulerEnabled)
	envString(&c.Interval, EnvSchedulerInterval)
	envInt(&c.Workers, EnvSchedulerWorkers)
}

func (c *SchedulerConfig) validate() error {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}
	return nil
}
