// Package events exposes the append-only history of each state vector.
package events

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/store"
	"github.com/JaimeStill/triage/internal/triage"
)

// System reads vector histories.
type System interface {
	Handler() *Handler

	// History returns the vector's events oldest first.
	History(ctx context.Context, vectorID uuid.UUID) ([]triage.Event, error)
}

type repo struct {
	store  store.Store
	logger *slog.Logger
}

// New creates the events System.
func New(st store.Store, logger *slog.Logger) System {
	return &repo{
		store:  st,
		logger: logger.With("system", "events"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *repo) History(ctx context.Context, vectorID uuid.UUID) ([]triage.Event, error) {
	return r.store.History(ctx, vectorID)
}
