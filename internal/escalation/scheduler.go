// Package escalation sweeps active state vectors past their deadline into
// OVERDUE with a tightened next deadline.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/triage/internal/deadline"
	"github.com/JaimeStill/triage/internal/metrics"
	"github.com/JaimeStill/triage/internal/store"
	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/lifecycle"
	"github.com/JaimeStill/triage/pkg/pagination"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultInterval = time.Minute
	DefaultWorkers  = 4
)

// escalatable are the states a sweep moves to OVERDUE. An OVERDUE vector is
// escalated again each time its recomputed deadline passes.
var escalatable = []triage.LifecycleState{
	triage.StateNew,
	triage.StateWaiting,
	triage.StateOverdue,
}

// Config tunes the sweep loop.
type Config struct {
	Interval time.Duration
	Workers  int
}

// Failure records a vector the sweep could not escalate.
type Failure struct {
	VectorID uuid.UUID `json:"vector_id"`
	Error    string    `json:"error"`
}

// TickResult reports one sweep.
type TickResult struct {
	Escalated []triage.StateVector `json:"escalated"`
	Failures  []Failure            `json:"failures"`
	// Skipped counts vectors another actor transitioned first.
	Skipped int `json:"skipped"`
}

// System runs escalation sweeps.
type System interface {
	Handler() *Handler

	// Tick sweeps at the current time.
	Tick(ctx context.Context) (*TickResult, error)

	// Sweep escalates every NEW, WAITING, or OVERDUE vector whose deadline
	// is before now. Per-vector failures are collected in the result; an error is
	// returned only when the due set cannot be read.
	Sweep(ctx context.Context, now time.Time) (*TickResult, error)

	// Start runs Tick on the configured interval until lc shuts down.
	Start(lc *lifecycle.Coordinator) error
}

type scheduler struct {
	store    store.Store
	policy   deadline.Policy
	interval time.Duration
	workers  int
	pageSize int
	logger   *slog.Logger
}

// New creates the escalation System.
func New(st store.Store, policy deadline.Policy, cfg Config, pagination pagination.Config, logger *slog.Logger) System {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &scheduler{
		store:    st,
		policy:   policy,
		interval: cfg.Interval,
		workers:  cfg.Workers,
		pageSize: pagination.MaxPageSize,
		logger:   logger.With("system", "escalation"),
	}
}

func (s *scheduler) Handler() *Handler {
	return NewHandler(s, s.logger)
}

func (s *scheduler) Tick(ctx context.Context) (*TickResult, error) {
	return s.Sweep(ctx, time.Now().UTC())
}

func (s *scheduler) Sweep(ctx context.Context, now time.Time) (*TickResult, error) {
	start := time.Now()

	due, err := s.due(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list due vectors: %w", err)
	}

	// An interrupted sweep would leave work for the next tick anyway, so
	// writes already scheduled run to completion.
	writeCtx := context.WithoutCancel(ctx)

	var (
		mu     sync.Mutex
		result = &TickResult{
			Escalated: make([]triage.StateVector, 0),
			Failures:  make([]Failure, 0),
		}
		g errgroup.Group
	)
	g.SetLimit(s.workers)

	for _, v := range due {
		g.Go(func() error {
			escalated, err := s.escalate(writeCtx, v, now)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				result.Escalated = append(result.Escalated, escalated)
			case errors.Is(err, triage.ErrConflictingTransition):
				result.Skipped++
			default:
				s.logger.Warn("escalation failed", "vector_id", v.ID, "error", err)
				result.Failures = append(result.Failures, Failure{VectorID: v.ID, Error: err.Error()})
			}
			return nil
		})
	}
	g.Wait()

	metrics.ObserveTick(time.Since(start), len(result.Escalated), len(result.Failures))

	if len(due) > 0 {
		s.logger.Info("escalation sweep complete",
			"due", len(due),
			"escalated", len(result.Escalated),
			"skipped", result.Skipped,
			"failed", len(result.Failures),
			"duration", time.Since(start),
		)
	}
	return result, nil
}

func (s *scheduler) Start(lc *lifecycle.Coordinator) error {
	lc.Go(func(ctx context.Context) {
		s.logger.Info("escalation scheduler started", "interval", s.interval, "workers", s.workers)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("escalation sweep failed", "error", err)
			}

			select {
			case <-ctx.Done():
				s.logger.Info("escalation scheduler stopped")
				return
			case <-ticker.C:
			}
		}
	})
	return nil
}

// due collects every escalatable vector whose deadline precedes now before
// any of them is transitioned, so paging is not disturbed by the sweep.
func (s *scheduler) due(ctx context.Context, now time.Time) ([]triage.StateVector, error) {
	filter := store.VectorFilter{
		States:    escalatable,
		DueBefore: &now,
		Sort:      store.SortDue,
	}

	var out []triage.StateVector
	for page := 1; ; page++ {
		result, err := s.store.ListVectors(ctx, pagination.PageRequest{Page: page, PageSize: s.pageSize}, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, result.Data...)
		if page >= result.TotalPages || len(result.Data) == 0 {
			return out, nil
		}
	}
}

func (s *scheduler) escalate(ctx context.Context, v triage.StateVector, now time.Time) (triage.StateVector, error) {
	tier, next := s.policy.Next(v.Zone, v.EscalationTier, now)

	verb := fmt.Sprintf("%s -> %s", v.LifecycleState, triage.StateOverdue)
	if v.LifecycleState == triage.StateOverdue {
		verb = "still " + string(triage.StateOverdue)
	}

	escalated, err := s.store.Transition(ctx, store.Transition{
		VectorID:       v.ID,
		From:           []triage.LifecycleState{v.LifecycleState},
		To:             triage.StateOverdue,
		DueBefore:      &now,
		DeadlineAt:     &next,
		EscalationTier: &tier,
		Event:          triage.EventEscalated,
		Description: fmt.Sprintf(
			"%s, deadline %s passed, tier %d, next deadline %s",
			verb, v.DeadlineAt.Format(time.RFC3339), tier, next.Format(time.RFC3339),
		),
		At: now,
	})
	if err != nil {
		return triage.StateVector{}, err
	}
	return escalated, nil
}
