// Package postgres implements the engine storage boundary on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/JaimeStill/triage/internal/store"
	"github.com/JaimeStill/triage/pkg/pagination"
	"github.com/JaimeStill/triage/pkg/repository"
)

const maxTxAttempts = 3

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

var _ store.Store = (*repo)(nil)

// New creates a PostgreSQL-backed Store over db.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) store.Store {
	return &repo{
		db:         db,
		logger:     logger.With("system", "store"),
		pagination: pagination,
	}
}

// withTx runs fn in a transaction, retrying serialization failures and deadlocks.
func withTx[T any](ctx context.Context, r *repo, fn func(tx *sql.Tx) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		result, err = repository.WithTx(ctx, r.db, fn)
		if err == nil || !repository.IsRetryable(err) {
			return result, err
		}
		r.logger.Warn("retrying transaction", "attempt", attempt, "error", err)
	}
	return result, err
}
