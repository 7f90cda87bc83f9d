package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/store"
	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/pagination"
	"github.com/JaimeStill/triage/pkg/query"
	"github.com/JaimeStill/triage/pkg/repository"
)

var sortCorrections = []query.SortField{{Field: "CreatedAt", Descending: true}}

func (r *repo) ApplyCorrection(ctx context.Context, c store.CorrectionWrite) (store.CorrectionResult, error) {
	res, err := withTx(ctx, r, func(tx *sql.Tx) (store.CorrectionResult, error) {
		lockQ := fmt.Sprintf(
			"SELECT %s FROM %s WHERE %s = $1 FOR UPDATE",
			vectorProjection.Columns(),
			vectorProjection.From(),
			vectorProjection.Column("ID"),
		)

		current, err := repository.QueryOne(ctx, tx, lockQ, []any{c.VectorID}, scanVector)
		if errors.Is(err, sql.ErrNoRows) {
			return store.CorrectionResult{}, triage.ErrNotFound
		}
		if err != nil {
			return store.CorrectionResult{}, fmt.Errorf("lock vector: %w", err)
		}

		if current.Zone != c.FromZone {
			return store.CorrectionResult{}, fmt.Errorf(
				"%w: vector %s is %s, expected %s",
				triage.ErrConflictingTransition, current.ID, current.Zone, c.FromZone,
			)
		}

		key := current.RuleKey()

		correctionQ := fmt.Sprintf(`
			INSERT INTO corrections(vector_id, namespace, sender_key, old_zone, new_zone, actor, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING %s`, correctionProjection.Returning())

		correction, err := repository.QueryOne(ctx, tx, correctionQ, []any{
			current.ID,
			key.Namespace,
			key.Sender,
			string(c.FromZone),
			string(c.ToZone),
			c.Actor,
			c.At,
		}, scanCorrection)
		if err != nil {
			return store.CorrectionResult{}, fmt.Errorf("insert correction: %w", err)
		}

		ruleQ := `
			INSERT INTO rule_overrides(namespace, sender_key, zone, version, updated_at)
			VALUES ($1, $2, $3, 1, $4)
			ON CONFLICT (namespace, sender_key) DO UPDATE
			SET zone = EXCLUDED.zone,
			    version = rule_overrides.version + 1,
			    updated_at = EXCLUDED.updated_at
			RETURNING namespace, sender_key, zone, version, updated_at`

		rule, err := repository.QueryOne(ctx, tx, ruleQ, []any{
			key.Namespace,
			key.Sender,
			string(c.ToZone),
			c.At,
		}, scanRule)
		if err != nil {
			return store.CorrectionResult{}, fmt.Errorf("upsert rule: %w", err)
		}

		updateQ := fmt.Sprintf(`
			UPDATE state_vectors SET zone = $1, updated_at = $2
			WHERE id = $3
			RETURNING %s`, vectorProjection.Returning())

		vector, err := repository.QueryOne(ctx, tx, updateQ, []any{string(c.ToZone), c.At, current.ID}, scanVector)
		if err != nil {
			return store.CorrectionResult{}, fmt.Errorf("update zone: %w", err)
		}

		description := fmt.Sprintf("zone %s -> %s by %s", c.FromZone, c.ToZone, c.Actor)
		if _, err := appendEvent(ctx, tx, vector.ID, triage.EventCorrected, description, c.At); err != nil {
			return store.CorrectionResult{}, err
		}

		return store.CorrectionResult{
			Vector:     vector,
			Correction: correction,
			Rule:       rule,
		}, nil
	})
	if err != nil {
		return store.CorrectionResult{}, triage.StorageError("apply correction", err)
	}

	r.logger.Info("correction applied",
		"vector_id", res.Vector.ID,
		"from", c.FromZone,
		"to", c.ToZone,
		"rule", res.Rule.RuleKey.String(),
		"rule_version", res.Rule.Version,
	)
	return res, nil
}

func (r *repo) ListCorrections(
	ctx context.Context,
	page pagination.PageRequest,
	vectorID *uuid.UUID,
) (*pagination.PageResult[triage.Correction], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(correctionProjection, sortCorrections...).
		WhereSearch(page.Search, "Sender", "Actor").
		WhereEquals("VectorID", vectorID)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs...)
	if err != nil {
		return nil, triage.StorageError("count corrections", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanCorrection)
	if err != nil {
		return nil, triage.StorageError("query corrections", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}
