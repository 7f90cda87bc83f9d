// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/triage/internal/classify"
	"github.com/JaimeStill/triage/internal/config"
	"github.com/JaimeStill/triage/internal/infrastructure"
	"github.com/JaimeStill/triage/internal/metrics"
	"github.com/JaimeStill/triage/pkg/middleware"
	"github.com/JaimeStill/triage/pkg/module"
)

// NewModule creates the API module and registers the background work the
// domain needs: the escalation loop and the pattern-pack watcher.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)

	domain, err := NewDomain(runtime)
	if err != nil {
		return nil, err
	}

	if err := startBackground(cfg, runtime, domain); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	registerRoutes(mux, domain)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.Recover(runtime.Logger))
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.MaxBody(cfg.API.MaxBodySizeBytes()))
	if cfg.Metrics.IsEnabled() {
		m.Use(metrics.Middleware)
	}
	m.Use(middleware.Logger(runtime.Logger))

	return m, nil
}

func startBackground(cfg *config.Config, runtime *Runtime, domain *Domain) error {
	if cfg.Scheduler.IsEnabled() {
		if err := domain.Escalation.Start(runtime.Lifecycle); err != nil {
			return err
		}
	}

	if cfg.Engine.Watching() {
		if err := classify.Watch(runtime.Lifecycle, domain.Classifier.Heuristic(), cfg.Engine.RulesPath, runtime.Logger); err != nil {
			return fmt.Errorf("pattern watch: %w", err)
		}
	}
	return nil
}
