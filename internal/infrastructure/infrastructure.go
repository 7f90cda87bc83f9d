// Package infrastructure assembles the process-wide dependencies every
// module needs: lifecycle coordination, logging, the database pool, the
// metrics registry, and the fallback model generator.
package infrastructure

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JaimeStill/triage/internal/config"
	"github.com/JaimeStill/triage/internal/metrics"
	"github.com/JaimeStill/triage/internal/model"
	"github.com/JaimeStill/triage/pkg/database"
	"github.com/JaimeStill/triage/pkg/lifecycle"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Registry  *prometheus.Registry
	Generator model.Generator
}

// New creates an Infrastructure from cfg without starting anything.
// The database pool connects lazily, so New succeeds without a reachable server.
func New(cfg *config.Config) (*Infrastructure, error) {
	logger := NewLogger(&cfg.Logging, os.Stderr)

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	registry, err := NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("metrics init failed: %w", err)
	}

	generator, err := NewGenerator(&cfg.Model, logger)
	if err != nil {
		return nil, fmt.Errorf("model init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    logger,
		Database:  db,
		Registry:  registry,
		Generator: generator,
	}, nil
}

// Start registers the database hooks with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	return nil
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg *config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewRegistry creates a registry carrying the engine, Go runtime, and process collectors.
func NewRegistry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// NewGenerator returns the configured model boundary from a finalized cfg.
// Provider "none" disables the fallback so low-confidence messages degrade immediately.
func NewGenerator(cfg *config.ModelConfig, logger *slog.Logger) (model.Generator, error) {
	if !cfg.Enabled() {
		return model.Disabled{}, nil
	}
	return model.NewAgent(&cfg.Agent, model.Options{
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
	}, logger)
}
