package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/repository"
)

func (r *repo) History(ctx context.Context, vectorID uuid.UUID) ([]triage.Event, error) {
	if _, err := r.FindVector(ctx, vectorID); err != nil {
		return nil, err
	}

	q := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 ORDER BY e.created_at, e.seq",
		eventProjection.Columns(),
		eventProjection.From(),
		eventProjection.Column("VectorID"),
	)

	events, err := repository.QueryMany(ctx, r.db, q, []any{vectorID}, scanEvent)
	if err != nil {
		return nil, triage.StorageError("query history", err)
	}
	return events, nil
}

// appendEvent writes one history entry inside the caller's transaction.
func appendEvent(
	ctx context.Context,
	q repository.Querier,
	vectorID uuid.UUID,
	eventType triage.EventType,
	description string,
	at time.Time,
) (triage.Event, error) {
	insertQ := fmt.Sprintf(`
		INSERT INTO vector_events(vector_id, event_type, description, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING %s`, eventProjection.Returning())

	e, err := repository.QueryOne(ctx, q, insertQ, []any{vectorID, string(eventType), description, at}, scanEvent)
	if err != nil {
		return e, fmt.Errorf("append %s event: %w", eventType, err)
	}
	return e, nil
}
