package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/store"
	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/pagination"
	"github.com/JaimeStill/triage/pkg/query"
	"github.com/JaimeStill/triage/pkg/repository"
)

func (r *repo) CreateVector(ctx context.Context, v triage.StateVector, description string) (triage.StateVector, bool, error) {
	contextJSON, err := json.Marshal(v.Context)
	if err != nil {
		return triage.StateVector{}, false, fmt.Errorf("marshal context: %w", err)
	}

	insertQ := fmt.Sprintf(`
		INSERT INTO state_vectors(
			id, grant_id, source_message_id, sender, subject, intent_label,
			owner_role, deadline_at, escalation_tier, risk_score, confidence,
			context, lifecycle_state, zone, summary, reason, llm_fallback,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)
		ON CONFLICT (grant_id, source_message_id) DO NOTHING
		RETURNING %s`, vectorProjection.Returning())

	insertArgs := []any{
		v.ID,
		v.GrantID,
		v.SourceMessageID,
		v.Sender,
		v.Subject,
		v.IntentLabel,
		v.OwnerRole,
		v.DeadlineAt,
		v.EscalationTier,
		v.RiskScore,
		v.Confidence,
		contextJSON,
		string(v.LifecycleState),
		string(v.Zone),
		v.Summary,
		v.Reason,
		v.Fallback,
		v.CreatedAt,
	}

	type outcome struct {
		vector  triage.StateVector
		created bool
	}

	out, err := withTx(ctx, r, func(tx *sql.Tx) (outcome, error) {
		created, err := repository.QueryOne(ctx, tx, insertQ, insertArgs, scanVector)
		if errors.Is(err, sql.ErrNoRows) {
			existing, err := findBySource(ctx, tx, v.GrantID, v.SourceMessageID)
			if err != nil {
				return outcome{}, fmt.Errorf("find existing vector: %w", err)
			}
			return outcome{vector: existing}, nil
		}
		if err != nil {
			return outcome{}, fmt.Errorf("insert vector: %w", err)
		}

		if _, err := appendEvent(ctx, tx, created.ID, triage.EventCreated, description, created.CreatedAt); err != nil {
			return outcome{}, err
		}

		return outcome{vector: created, created: true}, nil
	})
	if err != nil {
		return triage.StateVector{}, false, triage.StorageError("create vector", err)
	}

	if out.created {
		r.logger.Info("state vector created",
			"id", out.vector.ID,
			"grant_id", out.vector.GrantID,
			"source_message_id", out.vector.SourceMessageID,
			"zone", out.vector.Zone,
		)
	}
	return out.vector, out.created, nil
}

func (r *repo) FindVector(ctx context.Context, id uuid.UUID) (triage.StateVector, error) {
	q, args := query.NewBuilder(vectorProjection).BuildSingle("ID", id)

	v, err := repository.QueryOne(ctx, r.db, q, args, scanVector)
	if err != nil {
		return v, triage.StorageError("find vector", repository.MapError(err, triage.ErrNotFound, err))
	}
	return v, nil
}

func (r *repo) FindBySource(ctx context.Context, grantID, sourceMessageID string) (triage.StateVector, error) {
	v, err := findBySource(ctx, r.db, grantID, sourceMessageID)
	if err != nil {
		return v, triage.StorageError("find vector by source", repository.MapError(err, triage.ErrNotFound, err))
	}
	return v, nil
}

func (r *repo) ListVectors(
	ctx context.Context,
	page pagination.PageRequest,
	filter store.VectorFilter,
) (*pagination.PageResult[triage.StateVector], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(vectorProjection, filter.Sort...).
		WhereSearch(page.Search, "Subject", "Sender").
		WhereIn("Zone", stringArgs(filter.Zones)).
		WhereIn("LifecycleState", stringArgs(filter.States)).
		WhereEquals("OwnerRole", filter.OwnerRole).
		WhereBefore("DeadlineAt", filter.DueBefore)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs...)
	if err != nil {
		return nil, triage.StorageError("count vectors", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanVector)
	if err != nil {
		return nil, triage.StorageError("query vectors", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Transition(ctx context.Context, t store.Transition) (triage.StateVector, error) {
	updateQ, updateArgs := transitionSQL(t)

	v, err := withTx(ctx, r, func(tx *sql.Tx) (triage.StateVector, error) {
		v, err := repository.QueryOne(ctx, tx, updateQ, updateArgs, scanVector)
		if errors.Is(err, sql.ErrNoRows) {
			return triage.StateVector{}, missingOrConflict(ctx, tx, t.VectorID)
		}
		if err != nil {
			return triage.StateVector{}, fmt.Errorf("update vector: %w", err)
		}

		if _, err := appendEvent(ctx, tx, v.ID, t.Event, t.Description, t.At); err != nil {
			return triage.StateVector{}, err
		}
		return v, nil
	})
	if err != nil {
		return triage.StateVector{}, triage.StorageError("transition vector", err)
	}

	r.logger.Info("state vector transitioned",
		"id", v.ID,
		"state", v.LifecycleState,
		"event", t.Event,
	)
	return v, nil
}

// transitionSQL renders the conditional UPDATE for t.
func transitionSQL(t store.Transition) (string, []any) {
	args := []any{string(t.To), t.At}
	sets := []string{"lifecycle_state = $1", "updated_at = $2"}

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if t.OwnerRole != nil {
		sets = append(sets, "owner_role = "+next(*t.OwnerRole))
	}
	if t.DeadlineAt != nil {
		sets = append(sets, "deadline_at = "+next(*t.DeadlineAt))
	}
	if t.EscalationTier != nil {
		sets = append(sets, "escalation_tier = "+next(*t.EscalationTier))
	}

	where := []string{"id = " + next(t.VectorID)}

	states := make([]string, len(t.From))
	for i, s := range t.From {
		states[i] = next(string(s))
	}
	where = append(where, "lifecycle_state IN ("+strings.Join(states, ", ")+")")

	if t.DueBefore != nil {
		where = append(where, "deadline_at < "+next(*t.DueBefore))
	}

	q := fmt.Sprintf(
		"UPDATE state_vectors SET %s WHERE %s RETURNING %s",
		strings.Join(sets, ", "),
		strings.Join(where, " AND "),
		vectorProjection.Returning(),
	)
	return q, args
}

func missingOrConflict(ctx context.Context, q repository.Querier, id uuid.UUID) error {
	var state string
	err := q.QueryRowContext(ctx, "SELECT lifecycle_state FROM state_vectors WHERE id = $1", id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return triage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check vector state: %w", err)
	}
	return fmt.Errorf("%w: vector %s is %s", triage.ErrConflictingTransition, id, state)
}

func findBySource(ctx context.Context, q repository.Querier, grantID, sourceMessageID string) (triage.StateVector, error) {
	sql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 AND %s = $2",
		vectorProjection.Columns(),
		vectorProjection.From(),
		vectorProjection.Column("GrantID"),
		vectorProjection.Column("SourceMessageID"),
	)
	return repository.QueryOne(ctx, q, sql, []any{grantID, sourceMessageID}, scanVector)
}

func stringArgs[T ~string](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
