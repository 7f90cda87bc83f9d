package escalation_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/triage/internal/deadline"
	"github.com/JaimeStill/triage/internal/escalation"
	"github.com/JaimeStill/triage/internal/store"
	"github.com/JaimeStill/triage/internal/store/memory"
	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/lifecycle"
	"github.com/JaimeStill/triage/pkg/pagination"
	"github.com/JaimeStill/triage/pkg/routes"
)

var (
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
	pageCfg = pagination.Config{DefaultPageSize: 2, MaxPageSize: 2}
)

// hookStore runs before on every transition, letting tests inject failures
// or concurrent changes.
type hookStore struct {
	*memory.Store
	before func(t store.Transition) error
}

func (s *hookStore) Transition(ctx context.Context, t store.Transition) (triage.StateVector, error) {
	if s.before != nil {
		if err := s.before(t); err != nil {
			return triage.StateVector{}, err
		}
	}
	return s.Store.Transition(ctx, t)
}

func seed(t *testing.T, st store.Store, source string, state triage.LifecycleState, deadlineAt time.Time) triage.StateVector {
	t.Helper()
	ctx := context.Background()

	v, _, err := st.CreateVector(ctx, triage.StateVector{
		GrantID:         "grant-1",
		SourceMessageID: source,
		Sender:          "a@b.com",
		Zone:            triage.ZoneToday,
		EscalationTier:  2,
		DeadlineAt:      deadlineAt,
		LifecycleState:  triage.StateNew,
		CreatedAt:       deadlineAt.Add(-2 * time.Hour),
	}, "created")
	require.NoError(t, err)

	if state != triage.StateNew {
		v, err = st.Transition(ctx, store.Transition{
			VectorID: v.ID,
			From:     []triage.LifecycleState{triage.StateNew},
			To:       state,
			Event:    triage.EventStateChanged,
			At:       v.CreatedAt,
		})
		require.NoError(t, err)
	}
	return v
}

func newScheduler(st store.Store) escalation.System {
	return escalation.New(st, deadline.DefaultPolicy(), escalation.Config{Workers: 3}, pageCfg, discard)
}

func TestSweepEscalatesOverdueVector(t *testing.T) {
	st := memory.New(pageCfg)
	now := time.Now().UTC()
	v := seed(t, st, "m1", triage.StateNew, now.Add(-time.Hour))

	res, err := newScheduler(st).Sweep(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, res.Escalated, 1)
	assert.Empty(t, res.Failures)

	got, err := st.FindVector(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, triage.StateOverdue, got.LifecycleState)
	assert.Equal(t, 3, got.EscalationTier)
	assert.True(t, got.DeadlineAt.After(v.DeadlineAt))
	assert.Equal(t, now.Add(3*time.Hour), got.DeadlineAt)

	events, err := st.History(context.Background(), v.ID)
	require.NoError(t, err)
	escalated := 0
	for _, e := range events {
		if e.Type == triage.EventEscalated {
			escalated++
		}
	}
	assert.Equal(t, 1, escalated)
}

func TestSweepReescalatesOncePerDeadline(t *testing.T) {
	st := memory.New(pageCfg)
	now := time.Now().UTC()
	v := seed(t, st, "m1", triage.StateWaiting, now.Add(-time.Hour))
	sched := newScheduler(st)
	ctx := context.Background()

	_, err := sched.Sweep(ctx, now)
	require.NoError(t, err)

	res, err := sched.Sweep(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, res.Escalated, "deadline has not passed yet")

	later := now.Add(24 * time.Hour)
	res, err = sched.Sweep(ctx, later)
	require.NoError(t, err)
	require.Len(t, res.Escalated, 1)
	assert.Equal(t, triage.StateOverdue, res.Escalated[0].LifecycleState)
	assert.Equal(t, 4, res.Escalated[0].EscalationTier)
	assert.Equal(t, later.Add(5*time.Hour), res.Escalated[0].DeadlineAt)

	res, err = sched.Sweep(ctx, later.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, res.Escalated)

	events, err := st.History(ctx, v.ID)
	require.NoError(t, err)
	escalated := 0
	for _, e := range events {
		if e.Type == triage.EventEscalated {
			escalated++
		}
	}
	assert.Equal(t, 2, escalated)
	assert.Contains(t, events[len(events)-1].Description, "still OVERDUE")
}

func TestSweepIgnoresFutureAndCompleted(t *testing.T) {
	st := memory.New(pageCfg)
	now := time.Now().UTC()
	seed(t, st, "future", triage.StateNew, now.Add(time.Hour))
	seed(t, st, "done", triage.StateCompleted, now.Add(-time.Hour))

	res, err := newScheduler(st).Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, res.Escalated)
	assert.Zero(t, res.Skipped)
}

func TestSweepPagesThroughAllDueVectors(t *testing.T) {
	st := memory.New(pageCfg)
	now := time.Now().UTC()
	for i := range 5 {
		seed(t, st, fmt.Sprintf("m%d", i), triage.StateNew, now.Add(-time.Duration(i+1)*time.Minute))
	}

	res, err := newScheduler(st).Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, res.Escalated, 5)
}

func TestSweepCollectsFailures(t *testing.T) {
	base := memory.New(pageCfg)
	now := time.Now().UTC()
	bad := seed(t, base, "bad", triage.StateNew, now.Add(-time.Hour))
	seed(t, base, "good", triage.StateNew, now.Add(-time.Hour))

	st := &hookStore{Store: base, before: func(tr store.Transition) error {
		if tr.VectorID == bad.ID {
			return triage.StorageError("transition vector", errors.New("connection reset"))
		}
		return nil
	}}

	res, err := newScheduler(st).Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, res.Escalated, 1)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, bad.ID, res.Failures[0].VectorID)
	assert.Contains(t, res.Failures[0].Error, "connection reset")

	got, err := base.FindVector(context.Background(), bad.ID)
	require.NoError(t, err)
	assert.Equal(t, triage.StateNew, got.LifecycleState, "failed vector retried next tick")
}

func TestSweepSkipsConcurrentlyCompleted(t *testing.T) {
	base := memory.New(pageCfg)
	now := time.Now().UTC()
	v := seed(t, base, "m1", triage.StateNew, now.Add(-time.Hour))

	var once atomic.Bool
	st := &hookStore{Store: base, before: func(tr store.Transition) error {
		if tr.Event == triage.EventEscalated && once.CompareAndSwap(false, true) {
			_, err := base.Transition(context.Background(), store.Transition{
				VectorID: v.ID,
				From:     triage.ActiveStates,
				To:       triage.StateCompleted,
				Event:    triage.EventStateChanged,
				At:       now,
			})
			return err
		}
		return nil
	}}

	res, err := newScheduler(st).Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, res.Escalated)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 1, res.Skipped)

	got, err := base.FindVector(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, triage.StateCompleted, got.LifecycleState)
}

func TestStartSweepsImmediately(t *testing.T) {
	st := memory.New(pageCfg)
	v := seed(t, st, "m1", triage.StateNew, time.Now().UTC().Add(-time.Hour))

	sched := escalation.New(st, deadline.DefaultPolicy(), escalation.Config{Interval: time.Hour}, pageCfg, discard)
	lc := lifecycle.New()
	require.NoError(t, sched.Start(lc))

	assert.Eventually(t, func() bool {
		got, err := st.FindVector(context.Background(), v.ID)
		return err == nil && got.LifecycleState == triage.StateOverdue
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, lc.Shutdown(time.Second))
}

func TestHandlerTick(t *testing.T) {
	st := memory.New(pageCfg)
	seed(t, st, "m1", triage.StateNew, time.Now().UTC().Add(-time.Hour))

	mux := http.NewServeMux()
	routes.Register(mux, newScheduler(st).Handler().Routes())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/escalation/tick", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"lifecycle_state":"OVERDUE"`)
	assert.Contains(t, rec.Body.String(), `"failures":[]`)
}

func TestSweepUnknownVectorIsFailure(t *testing.T) {
	base := memory.New(pageCfg)
	now := time.Now().UTC()
	seed(t, base, "m1", triage.StateNew, now.Add(-time.Hour))

	st := &hookStore{Store: base, before: func(store.Transition) error {
		return fmt.Errorf("vector %s: %w", uuid.Nil, triage.ErrNotFound)
	}}

	res, err := newScheduler(st).Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, res.Failures, 1)
}
