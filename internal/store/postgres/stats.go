package postgres

import (
	"context"
	"time"

	"github.com/JaimeStill/triage/internal/triage"
)

func (r *repo) Stats(ctx context.Context) (triage.Stats, error) {
	stats := triage.Stats{ActiveByZone: make(map[triage.Zone]int, len(triage.Zones))}
	for _, z := range triage.Zones {
		stats.ActiveByZone[z] = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT zone, COUNT(*)
		FROM state_vectors
		WHERE lifecycle_state IN ('NEW', 'WAITING', 'OVERDUE')
		GROUP BY zone`)
	if err != nil {
		return stats, triage.StorageError("stats by zone", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			zone  triage.Zone
			count int
		)
		if err := rows.Scan(&zone, &count); err != nil {
			return stats, triage.StorageError("scan stats", err)
		}
		stats.ActiveByZone[zone] = count
	}
	if err := rows.Err(); err != nil {
		return stats, triage.StorageError("stats by zone", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM state_vectors
			 WHERE lifecycle_state = 'OVERDUE'
			    OR (lifecycle_state IN ('NEW', 'WAITING') AND deadline_at < $1)),
			(SELECT COUNT(*) FROM corrections)`,
		time.Now().UTC(),
	).Scan(&stats.Overdue, &stats.TotalCorrections)
	if err != nil {
		return stats, triage.StorageError("stats totals", err)
	}

	return stats, nil
}
