package vectors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/classify"
	"github.com/JaimeStill/triage/internal/deadline"
	"github.com/JaimeStill/triage/internal/metrics"
	"github.com/JaimeStill/triage/internal/store"
	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/pagination"
)

// maxAttempts bounds re-reads after a conflicting transition.
const maxAttempts = 3

type repo struct {
	store      store.Store
	classifier Classifier
	policy     deadline.Policy
	logger     *slog.Logger
	pagination pagination.Config
	now        func() time.Time
}

// New creates the vector System.
func New(
	st store.Store,
	classifier Classifier,
	policy deadline.Policy,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		store:      st,
		classifier: classifier,
		policy:     policy,
		logger:     logger.With("system", "vectors"),
		pagination: pagination,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Ingest(ctx context.Context, m triage.Message) (*Ingested, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.Normalize()

	existing, err := r.store.FindBySource(ctx, m.GrantID, m.SourceMessageID)
	switch {
	case err == nil:
		r.logAlreadyIngested(m, existing)
		return &Ingested{Vector: existing}, nil
	case !errors.Is(err, triage.ErrNotFound):
		return nil, err
	}

	result, err := r.classifier.Classify(ctx, &m)
	if err != nil {
		return nil, triage.StorageError("classify", err)
	}

	now := r.now()
	tier, due := r.policy.Initial(result.Zone, result.RiskScore, now)

	v := triage.StateVector{
		ID:              uuid.New(),
		GrantID:         m.GrantID,
		SourceMessageID: m.SourceMessageID,
		Sender:          m.Sender,
		Subject:         m.Subject,
		IntentLabel:     result.IntentLabel,
		OwnerRole:       classify.OwnerRole(result.IntentLabel, result.RiskScore),
		DeadlineAt:      due,
		EscalationTier:  tier,
		RiskScore:       result.RiskScore,
		Confidence:      result.Confidence,
		Context:         vectorContext(result, m.ReceivedAt),
		LifecycleState:  triage.StateNew,
		Zone:            result.Zone,
		Summary:         result.Summary,
		Reason:          result.Reason,
		Fallback:        result.Fallback,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	description := fmt.Sprintf(
		"classified %s: %s (confidence %.2f, received %s)",
		result.Zone,
		result.Reason,
		result.Confidence,
		m.ReceivedAt.UTC().Format(time.RFC3339),
	)

	stored, created, err := r.store.CreateVector(ctx, v, description)
	if err != nil {
		return nil, err
	}

	out := &Ingested{Vector: stored, Created: created}
	if created {
		out.Result = &result
		metrics.ObserveVectorCreated()
	} else {
		r.logAlreadyIngested(m, stored)
	}
	return out, nil
}

func (r *repo) logAlreadyIngested(m triage.Message, v triage.StateVector) {
	r.logger.Info("message already ingested",
		"grant_id", m.GrantID,
		"source_message_id", m.SourceMessageID,
		"id", v.ID,
	)
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*triage.StateVector, error) {
	v, err := r.store.FindVector(ctx, id)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repo) ListActive(
	ctx context.Context,
	page pagination.PageRequest,
	zone *triage.Zone,
) (*pagination.PageResult[triage.StateVector], error) {
	filter := store.VectorFilter{
		States: triage.ActiveStates,
		Sort:   store.SortDue,
	}
	if zone != nil {
		filter.Zones = []triage.Zone{*zone}
	}
	return r.store.ListVectors(ctx, page, filter)
}

func (r *repo) ListByOwner(
	ctx context.Context,
	page pagination.PageRequest,
	role string,
) (*pagination.PageResult[triage.StateVector], error) {
	return r.store.ListVectors(ctx, page, store.VectorFilter{
		States:    triage.ActiveStates,
		OwnerRole: &role,
		Sort:      store.SortDue,
	})
}

func (r *repo) Deck(ctx context.Context, role string) ([]triage.StateVector, error) {
	page := pagination.PageRequest{Page: 1, PageSize: DeckSize}
	result, err := r.store.ListVectors(ctx, page, store.VectorFilter{
		States:    triage.ActiveStates,
		OwnerRole: &role,
		Sort:      store.SortDeck,
	})
	if err != nil {
		return nil, err
	}
	return result.Data, nil
}

func (r *repo) Acknowledge(ctx context.Context, id uuid.UUID, owner string) (*triage.StateVector, error) {
	owner = strings.TrimSpace(owner)

	var lastErr error
	for range maxAttempts {
		v, err := r.store.FindVector(ctx, id)
		if err != nil {
			return nil, err
		}

		t, ok, err := acknowledgement(v, owner, r.now())
		if err != nil {
			return nil, err
		}
		if !ok {
			return &v, nil
		}

		updated, err := r.store.Transition(ctx, t)
		if errors.Is(err, triage.ErrConflictingTransition) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		return &updated, nil
	}
	return nil, lastErr
}

func (r *repo) Complete(ctx context.Context, id uuid.UUID) (*triage.StateVector, error) {
	var lastErr error
	for range maxAttempts {
		v, err := r.store.FindVector(ctx, id)
		if err != nil {
			return nil, err
		}
		if v.LifecycleState == triage.StateCompleted {
			return &v, nil
		}

		updated, err := r.store.Transition(ctx, store.Transition{
			VectorID:    id,
			From:        triage.ActiveStates,
			To:          triage.StateCompleted,
			Event:       triage.EventStateChanged,
			Description: fmt.Sprintf("%s -> %s", v.LifecycleState, triage.StateCompleted),
			At:          r.now(),
		})
		if errors.Is(err, triage.ErrConflictingTransition) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		return &updated, nil
	}
	return nil, lastErr
}

func (r *repo) Stats(ctx context.Context) (*triage.Stats, error) {
	s, err := r.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// acknowledgement decides the transition for acknowledging v. ok is false
// when the acknowledgement changes nothing.
func acknowledgement(v triage.StateVector, owner string, at time.Time) (store.Transition, bool, error) {
	if owner == "" {
		owner = v.OwnerRole
	}

	t := store.Transition{
		VectorID:  v.ID,
		To:        triage.StateWaiting,
		OwnerRole: &owner,
		At:        at,
	}

	switch v.LifecycleState {
	case triage.StateCompleted:
		return t, false, fmt.Errorf("%w: vector %s is completed", triage.ErrConflictingTransition, v.ID)

	case triage.StateWaiting:
		if owner == v.OwnerRole {
			return t, false, nil
		}
		t.From = []triage.LifecycleState{triage.StateWaiting}
		t.Event = triage.EventOwnerChanged
		t.Description = fmt.Sprintf("owner %s -> %s", v.OwnerRole, owner)

	default:
		t.From = []triage.LifecycleState{triage.StateNew, triage.StateOverdue}
		if owner != v.OwnerRole {
			t.Event = triage.EventOwnerChanged
			t.Description = fmt.Sprintf("%s -> %s, owner %s -> %s", v.LifecycleState, triage.StateWaiting, v.OwnerRole, owner)
		} else {
			t.Event = triage.EventStateChanged
			t.Description = fmt.Sprintf("%s -> %s, acknowledged by %s", v.LifecycleState, triage.StateWaiting, owner)
		}
	}

	return t, true, nil
}

// vectorContext folds the receive time and the recommendation fields that have
// no column of their own into the vector's context blob.
func vectorContext(result triage.Result, receivedAt time.Time) map[string]any {
	blob := make(map[string]any, len(result.Context)+6)
	maps.Copy(blob, result.Context)
	blob["received_at"] = receivedAt.UTC().Format(time.RFC3339)

	if result.RecommendedAction != "" {
		blob["recommended_action"] = result.RecommendedAction
	}
	if result.ActionType != "" {
		blob["action_type"] = result.ActionType
	}
	if result.DraftReply != "" {
		blob["draft_reply"] = result.DraftReply
	}
	if result.HeuristicReason != "" {
		blob["heuristic_reason"] = result.HeuristicReason
	}
	if result.Degraded {
		blob["degraded"] = true
	}
	return blob
}
