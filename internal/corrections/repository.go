package corrections

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/metrics"
	"github.com/JaimeStill/triage/internal/store"
	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/pagination"
)

// maxAttempts bounds re-reads when another correction commits first.
const maxAttempts = 3

// DefaultActor names corrections submitted without an actor.
const DefaultActor = "unknown"

type repo struct {
	store      store.Store
	rules      RulePublisher
	logger     *slog.Logger
	pagination pagination.Config
	now        func() time.Time
}

// New creates the corrections System. Committed overrides are published to rules.
func New(st store.Store, rules RulePublisher, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		store:      st,
		rules:      rules,
		logger:     logger.With("system", "corrections"),
		pagination: pagination,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Apply(ctx context.Context, vectorID uuid.UUID, zone triage.Zone, actor string) (*Applied, error) {
	if !zone.Valid() {
		return nil, triage.ErrInvalidZone
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = DefaultActor
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := r.store.FindVector(ctx, vectorID)
		if err != nil {
			return nil, err
		}
		if v.Zone == zone {
			return &Applied{Vector: v}, nil
		}

		res, err := r.store.ApplyCorrection(ctx, store.CorrectionWrite{
			VectorID: vectorID,
			FromZone: v.Zone,
			ToZone:   zone,
			Actor:    actor,
			At:       r.now(),
		})
		if errors.Is(err, triage.ErrConflictingTransition) {
			r.logger.Debug("correction raced, re-reading", "vector_id", vectorID, "attempt", attempt)
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		if r.rules != nil {
			r.rules.Observe(res.Rule)
		}
		metrics.ObserveCorrection(string(zone))

		return &Applied{
			Vector:     res.Vector,
			Correction: &res.Correction,
			Rule:       &res.Rule,
			Changed:    true,
		}, nil
	}
	return nil, lastErr
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	vectorID *uuid.UUID,
) (*pagination.PageResult[triage.Correction], error) {
	return r.store.ListCorrections(ctx, page, vectorID)
}
