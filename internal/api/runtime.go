package api

import (
	"github.com/JaimeStill/triage/internal/config"
	"github.com/JaimeStill/triage/internal/infrastructure"
	"github.com/JaimeStill/triage/pkg/pagination"
)

// Runtime extends Infrastructure with the configuration the domain needs.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Engine     config.EngineConfig
	Model      config.ModelConfig
	Scheduler  config.SchedulerConfig
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Registry:  infra.Registry,
			Generator: infra.Generator,
		},
		Pagination: cfg.API.Pagination,
		Engine:     cfg.Engine,
		Model:      cfg.Model,
		Scheduler:  cfg.Scheduler,
	}
}
