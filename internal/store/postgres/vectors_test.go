package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/triage/internal/store"
	"github.com/JaimeStill/triage/internal/triage"
)

func TestTransitionSQLEscalation(t *testing.T) {
	id := uuid.New()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tier := 3

	q, args := transitionSQL(store.Transition{
		VectorID:       id,
		From:           []triage.LifecycleState{triage.StateNew, triage.StateWaiting},
		To:             triage.StateOverdue,
		DueBefore:      &now,
		EscalationTier: &tier,
		Event:          triage.EventEscalated,
		At:             now,
	})

	assert.True(t, strings.HasPrefix(q,
		"UPDATE state_vectors SET lifecycle_state = $1, updated_at = $2, escalation_tier = $3 "+
			"WHERE id = $4 AND lifecycle_state IN ($5, $6) AND deadline_at < $7 RETURNING "), q)
	assert.Equal(t, []any{"OVERDUE", now, 3, id, "NEW", "WAITING", now}, args)
}

func TestTransitionSQLOwnerChange(t *testing.T) {
	id := uuid.New()
	now := time.Now()
	owner := "billing"

	q, args := transitionSQL(store.Transition{
		VectorID:  id,
		From:      []triage.LifecycleState{triage.StateNew},
		To:        triage.StateWaiting,
		OwnerRole: &owner,
		At:        now,
	})

	assert.Contains(t, q, "owner_role = $3")
	assert.Contains(t, q, "WHERE id = $4 AND lifecycle_state IN ($5)")
	assert.NotContains(t, q, "deadline_at <")
	assert.Contains(t, q, "RETURNING id, grant_id")
	assert.Len(t, args, 5)
}

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

func TestScanCorrectionDeletedVector(t *testing.T) {
	id := uuid.New()
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	row := rowFunc(func(dest ...any) error {
		*dest[0].(*uuid.UUID) = id
		if err := dest[1].(*uuid.NullUUID).Scan(nil); err != nil {
			return err
		}
		*dest[2].(*string) = "grant-1"
		*dest[3].(*string) = "billing@clinic.com"
		*dest[4].(*triage.Zone) = triage.ZoneToday
		*dest[5].(*triage.Zone) = triage.ZoneStat
		*dest[6].(*string) = "front_desk"
		*dest[7].(*time.Time) = at
		return nil
	})

	c, err := scanCorrection(row)
	assert.NoError(t, err)
	assert.Equal(t, id, c.ID)
	assert.Equal(t, uuid.Nil, c.VectorID)
	assert.Equal(t, triage.ZoneStat, c.NewZone)
	assert.Equal(t, at, c.CreatedAt)
}

func TestScanCorrectionLinkedVector(t *testing.T) {
	vectorID := uuid.New()

	row := rowFunc(func(dest ...any) error {
		return dest[1].(*uuid.NullUUID).Scan(vectorID.String())
	})

	c, err := scanCorrection(row)
	assert.NoError(t, err)
	assert.Equal(t, vectorID, c.VectorID)
}

func TestCorrectionsOutliveVectors(t *testing.T) {
	schema, err := migrations.ReadFile("migrations/000001_initial_schema.up.sql")
	require.NoError(t, err)

	ddl := string(schema)
	start := strings.Index(ddl, "CREATE TABLE corrections")
	require.GreaterOrEqual(t, start, 0)
	table := ddl[start : start+strings.Index(ddl[start:], ");")]

	assert.Contains(t, table, "vector_id  UUID REFERENCES state_vectors(id) ON DELETE SET NULL")
	assert.NotContains(t, table, "CASCADE")
}
