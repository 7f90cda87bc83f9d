package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/JaimeStill/triage/internal/config"
	"github.com/JaimeStill/triage/pkg/lifecycle"
)

const maxHeaderBytes = 64 << 10

// listener owns the engine's HTTP socket. The port is bound in Start so a
// conflict fails startup rather than appearing later in the log.
type listener struct {
	srv    *http.Server
	ln     net.Listener
	drain  time.Duration
	logger *slog.Logger
}

func newListener(cfg *config.ServerConfig, handler http.Handler, logger *slog.Logger) *listener {
	logger = logger.With("system", "http")

	return &listener{
		srv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeoutDuration(),
			ReadHeaderTimeout: cfg.ReadTimeoutDuration(),
			WriteTimeout:      cfg.WriteTimeoutDuration(),
			MaxHeaderBytes:    maxHeaderBytes,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		drain:  cfg.ShutdownTimeoutDuration(),
		logger: logger,
	}
}

// Addr reports the bound address, which differs from the configured one
// when port 0 is requested.
func (l *listener) Addr() string {
	if l.ln == nil {
		return l.srv.Addr
	}
	return l.ln.Addr().String()
}

// Start binds the socket, serves until lc shuts down, then drains in-flight
// ingest and correction requests for up to the configured drain window.
func (l *listener) Start(lc *lifecycle.Coordinator) error {
	ln, err := net.Listen("tcp", l.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", l.srv.Addr, err)
	}
	l.ln = ln

	lc.Go(func(context.Context) {
		l.logger.Info("listening", "addr", l.Addr())
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("serve failed", "error", err)
		}
	})

	lc.OnShutdown(func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.drain)
		defer cancel()

		l.logger.Info("draining connections", "timeout", l.drain)
		if err := l.srv.Shutdown(ctx); err != nil {
			l.logger.Error("drain incomplete", "error", err)
			return
		}
		l.logger.Info("http stopped")
	})

	return nil
}
