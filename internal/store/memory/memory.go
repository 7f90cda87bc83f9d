// Package memory is an in-process Store with the same atomicity and
// conditional-update semantics as the PostgreSQL implementation.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/store"
	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/pagination"
	"github.com/JaimeStill/triage/pkg/query"
)

type sourceKey struct {
	grantID         string
	sourceMessageID string
}

// Store keeps every record in maps guarded by a single mutex.
type Store struct {
	mu          sync.Mutex
	vectors     map[uuid.UUID]triage.StateVector
	bySource    map[sourceKey]uuid.UUID
	events      map[uuid.UUID][]triage.Event
	rules       map[triage.RuleKey]triage.RuleOverride
	corrections []triage.Correction
	pagination  pagination.Config
}

var _ store.Store = (*Store)(nil)

// New creates an empty Store.
func New(cfg pagination.Config) *Store {
	return &Store{
		vectors:    make(map[uuid.UUID]triage.StateVector),
		bySource:   make(map[sourceKey]uuid.UUID),
		events:     make(map[uuid.UUID][]triage.Event),
		rules:      make(map[triage.RuleKey]triage.RuleOverride),
		pagination: cfg,
	}
}

func (s *Store) CreateVector(ctx context.Context, v triage.StateVector, description string) (triage.StateVector, bool, error) {
	if err := ctx.Err(); err != nil {
		return triage.StateVector{}, false, triage.StorageError("create vector", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sourceKey{v.GrantID, v.SourceMessageID}
	if id, ok := s.bySource[key]; ok {
		return clone(s.vectors[id]), false, nil
	}

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = v.CreatedAt
	}
	v.Context = maps.Clone(v.Context)
	if v.Context == nil {
		v.Context = map[string]any{}
	}

	s.vectors[v.ID] = v
	s.bySource[key] = v.ID
	s.appendEvent(v.ID, triage.EventCreated, description, v.CreatedAt)

	return clone(v), true, nil
}

func (s *Store) FindBySource(ctx context.Context, grantID, sourceMessageID string) (triage.StateVector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.bySource[sourceKey{grantID, sourceMessageID}]
	if !ok {
		return triage.StateVector{}, triage.ErrNotFound
	}
	return clone(s.vectors[id]), nil
}

func (s *Store) FindVector(ctx context.Context, id uuid.UUID) (triage.StateVector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vectors[id]
	if !ok {
		return triage.StateVector{}, triage.ErrNotFound
	}
	return clone(v), nil
}

func (s *Store) ListVectors(
	ctx context.Context,
	page pagination.PageRequest,
	filter store.VectorFilter,
) (*pagination.PageResult[triage.StateVector], error) {
	page.Normalize(s.pagination)

	s.mu.Lock()
	matched := make([]triage.StateVector, 0)
	for _, v := range s.vectors {
		if matches(v, filter, page.Search) {
			matched = append(matched, clone(v))
		}
	}
	s.mu.Unlock()

	order := filter.Sort
	if len(page.Sort) > 0 {
		order = page.Sort
	}
	slices.SortStableFunc(matched, func(a, b triage.StateVector) int {
		return compareVectors(a, b, order)
	})

	result := paginate(matched, page)
	return &result, nil
}

func (s *Store) Transition(ctx context.Context, t store.Transition) (triage.StateVector, error) {
	if err := ctx.Err(); err != nil {
		return triage.StateVector{}, triage.StorageError("transition vector", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vectors[t.VectorID]
	if !ok {
		return triage.StateVector{}, triage.ErrNotFound
	}
	if !slices.Contains(t.From, v.LifecycleState) {
		return triage.StateVector{}, fmt.Errorf(
			"%w: vector %s is %s", triage.ErrConflictingTransition, v.ID, v.LifecycleState,
		)
	}
	if t.DueBefore != nil && !v.DeadlineAt.Before(*t.DueBefore) {
		return triage.StateVector{}, fmt.Errorf(
			"%w: vector %s is not due", triage.ErrConflictingTransition, v.ID,
		)
	}

	v.LifecycleState = t.To
	v.UpdatedAt = t.At
	if t.OwnerRole != nil {
		v.OwnerRole = *t.OwnerRole
	}
	if t.DeadlineAt != nil {
		v.DeadlineAt = *t.DeadlineAt
	}
	if t.EscalationTier != nil {
		v.EscalationTier = *t.EscalationTier
	}

	s.vectors[v.ID] = v
	s.appendEvent(v.ID, t.Event, t.Description, t.At)
	return clone(v), nil
}

func (s *Store) History(ctx context.Context, vectorID uuid.UUID) ([]triage.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vectors[vectorID]; !ok {
		return nil, triage.ErrNotFound
	}
	return slices.Clone(s.events[vectorID]), nil
}

func (s *Store) LookupRule(ctx context.Context, key triage.RuleKey) (triage.RuleOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[key]
	if !ok {
		return triage.RuleOverride{}, triage.ErrNotFound
	}
	return rule, nil
}

func (s *Store) ListRules(
	ctx context.Context,
	page pagination.PageRequest,
	namespace string,
) (*pagination.PageResult[triage.RuleOverride], error) {
	page.Normalize(s.pagination)

	s.mu.Lock()
	rules := make([]triage.RuleOverride, 0, len(s.rules))
	for _, r := range s.rules {
		if namespace != "" && r.Namespace != namespace {
			continue
		}
		if page.Search != nil && !containsFold(r.Sender, *page.Search) {
			continue
		}
		rules = append(rules, r)
	}
	s.mu.Unlock()

	slices.SortFunc(rules, func(a, b triage.RuleOverride) int {
		return cmp.Or(
			cmp.Compare(a.Namespace, b.Namespace),
			cmp.Compare(a.Sender, b.Sender),
		)
	})

	result := paginate(rules, page)
	return &result, nil
}

func (s *Store) ApplyCorrection(ctx context.Context, c store.CorrectionWrite) (store.CorrectionResult, error) {
	if err := ctx.Err(); err != nil {
		return store.CorrectionResult{}, triage.StorageError("apply correction", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vectors[c.VectorID]
	if !ok {
		return store.CorrectionResult{}, triage.ErrNotFound
	}
	if v.Zone != c.FromZone {
		return store.CorrectionResult{}, fmt.Errorf(
			"%w: vector %s is %s, expected %s",
			triage.ErrConflictingTransition, v.ID, v.Zone, c.FromZone,
		)
	}

	key := v.RuleKey()
	correction := triage.Correction{
		ID:        uuid.New(),
		VectorID:  v.ID,
		RuleKey:   key,
		OldZone:   c.FromZone,
		NewZone:   c.ToZone,
		Actor:     c.Actor,
		CreatedAt: c.At,
	}
	s.corrections = append(s.corrections, correction)

	rule := s.rules[key]
	rule.RuleKey = key
	rule.Zone = c.ToZone
	rule.Version++
	rule.UpdatedAt = c.At
	s.rules[key] = rule

	v.Zone = c.ToZone
	v.UpdatedAt = c.At
	s.vectors[v.ID] = v

	description := fmt.Sprintf("zone %s -> %s by %s", c.FromZone, c.ToZone, c.Actor)
	s.appendEvent(v.ID, triage.EventCorrected, description, c.At)

	return store.CorrectionResult{
		Vector:     clone(v),
		Correction: correction,
		Rule:       rule,
	}, nil
}

func (s *Store) ListCorrections(
	ctx context.Context,
	page pagination.PageRequest,
	vectorID *uuid.UUID,
) (*pagination.PageResult[triage.Correction], error) {
	page.Normalize(s.pagination)

	s.mu.Lock()
	items := make([]triage.Correction, 0, len(s.corrections))
	for _, c := range s.corrections {
		if vectorID != nil && c.VectorID != *vectorID {
			continue
		}
		if page.Search != nil && !containsFold(c.Sender, *page.Search) && !containsFold(c.Actor, *page.Search) {
			continue
		}
		items = append(items, c)
	}
	s.mu.Unlock()

	// newest first
	slices.Reverse(items)

	result := paginate(items, page)
	return &result, nil
}

func (s *Store) Stats(ctx context.Context) (triage.Stats, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	stats := triage.Stats{
		ActiveByZone:     make(map[triage.Zone]int, len(triage.Zones)),
		TotalCorrections: len(s.corrections),
	}
	for _, z := range triage.Zones {
		stats.ActiveByZone[z] = 0
	}

	for _, v := range s.vectors {
		if !v.LifecycleState.Active() {
			continue
		}
		stats.ActiveByZone[v.Zone]++
		if v.LifecycleState == triage.StateOverdue || v.Overdue(now) {
			stats.Overdue++
		}
	}
	return stats, nil
}

func (s *Store) appendEvent(vectorID uuid.UUID, eventType triage.EventType, description string, at time.Time) {
	s.events[vectorID] = append(s.events[vectorID], triage.Event{
		ID:          uuid.New(),
		VectorID:    vectorID,
		Type:        eventType,
		Description: description,
		CreatedAt:   at,
	})
}

func clone(v triage.StateVector) triage.StateVector {
	v.Context = maps.Clone(v.Context)
	return v
}

func matches(v triage.StateVector, f store.VectorFilter, search *string) bool {
	if len(f.Zones) > 0 && !slices.Contains(f.Zones, v.Zone) {
		return false
	}
	if len(f.States) > 0 && !slices.Contains(f.States, v.LifecycleState) {
		return false
	}
	if f.OwnerRole != nil && v.OwnerRole != *f.OwnerRole {
		return false
	}
	if f.DueBefore != nil && !v.DeadlineAt.Before(*f.DueBefore) {
		return false
	}
	if search != nil && *search != "" {
		return containsFold(v.Subject, *search) || containsFold(v.Sender, *search)
	}
	return true
}

func compareVectors(a, b triage.StateVector, order []query.SortField) int {
	for _, f := range order {
		var c int
		switch f.Field {
		case "CreatedAt":
			c = a.CreatedAt.Compare(b.CreatedAt)
		case "UpdatedAt":
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		case "DeadlineAt":
			c = a.DeadlineAt.Compare(b.DeadlineAt)
		case "RiskScore":
			c = cmp.Compare(a.RiskScore, b.RiskScore)
		case "Confidence":
			c = cmp.Compare(a.Confidence, b.Confidence)
		case "Zone":
			c = cmp.Compare(a.Zone, b.Zone)
		case "Sender":
			c = cmp.Compare(a.Sender, b.Sender)
		case "Subject":
			c = cmp.Compare(a.Subject, b.Subject)
		case "EscalationTier":
			c = cmp.Compare(a.EscalationTier, b.EscalationTier)
		}
		if f.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return cmp.Compare(a.ID.String(), b.ID.String())
}

func paginate[T any](items []T, page pagination.PageRequest) pagination.PageResult[T] {
	total := len(items)
	start := min(page.Offset(), total)
	end := min(start+page.PageSize, total)
	return pagination.NewPageResult(items[start:end], total, page.Page, page.PageSize)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
