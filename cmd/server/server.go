package main

import (
	"context"
	"time"

	"github.com/JaimeStill/triage/internal/config"
	"github.com/JaimeStill/triage/internal/infrastructure"
)

// Server is the triage engine process: infrastructure, the API module with
// its escalation loop and pattern watcher, and the HTTP listener in front.
type Server struct {
	cfg      *config.Config
	infra    *infrastructure.Infrastructure
	modules  *Modules
	listener *listener
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	modules, err := NewModules(infra, cfg)
	if err != nil {
		return nil, err
	}

	router := buildRouter(infra, cfg)
	modules.Mount(router)

	return &Server{
		cfg:      cfg,
		infra:    infra,
		modules:  modules,
		listener: newListener(&cfg.Server, router, infra.Logger),
	}, nil
}

// Start brings up the database pool and the listener. Readiness flips once
// every startup hook has reported; /readyz answers 503 until then.
func (s *Server) Start() error {
	logger := s.infra.Logger

	if err := s.infra.Start(); err != nil {
		return err
	}
	if err := s.listener.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	logger.Info("triage engine starting",
		"addr", s.listener.Addr(),
		"version", s.cfg.Version,
		"env", s.cfg.Env(),
		"model_provider", s.cfg.Model.Provider,
		"escalation", s.cfg.Scheduler.IsEnabled(),
		"watch_rules", s.cfg.Engine.Watching(),
	)

	s.infra.Lifecycle.Go(func(context.Context) {
		if err := s.infra.Lifecycle.WaitForStartup(); err != nil {
			logger.Error("engine not ready", "error", err)
			return
		}
		logger.Info("engine ready")
	})

	return nil
}

// Shutdown cancels the lifecycle and waits for the listener to drain and the
// background loops to exit.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("triage engine stopping", "timeout", timeout)
	return s.infra.Lifecycle.Shutdown(timeout)
}
