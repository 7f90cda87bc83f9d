// Package store defines the storage boundary of the escalation engine: the
// atomic operations state vectors, events, rule overrides, and corrections
// require. Implementations live in the postgres and memory subpackages.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/pagination"
	"github.com/JaimeStill/triage/pkg/query"
)

// Store is the persistence contract consumed by the engine. Every method that
// changes a vector appends exactly one event in the same transaction.
type Store interface {
	// CreateVector inserts v unless a vector already exists for its
	// (GrantID, SourceMessageID), appending a CREATED event with description.
	// It returns the stored vector and whether this call created it.
	CreateVector(ctx context.Context, v triage.StateVector, description string) (triage.StateVector, bool, error)

	FindVector(ctx context.Context, id uuid.UUID) (triage.StateVector, error)

	// FindBySource returns the vector for a source message or triage.ErrNotFound.
	FindBySource(ctx context.Context, grantID, sourceMessageID string) (triage.StateVector, error)

	ListVectors(ctx context.Context, page pagination.PageRequest, filter VectorFilter) (*pagination.PageResult[triage.StateVector], error)

	// Transition applies t only if the vector is still in one of t.From.
	// It returns triage.ErrConflictingTransition when the precondition fails.
	Transition(ctx context.Context, t Transition) (triage.StateVector, error)

	History(ctx context.Context, vectorID uuid.UUID) ([]triage.Event, error)

	LookupRule(ctx context.Context, key triage.RuleKey) (triage.RuleOverride, error)
	ListRules(ctx context.Context, page pagination.PageRequest, namespace string) (*pagination.PageResult[triage.RuleOverride], error)

	// ApplyCorrection records the audit entry, upserts the sender override,
	// moves the vector from c.FromZone to c.ToZone, and appends a CORRECTED
	// event atomically. It returns triage.ErrConflictingTransition when the
	// vector is no longer in c.FromZone.
	ApplyCorrection(ctx context.Context, c CorrectionWrite) (CorrectionResult, error)
	ListCorrections(ctx context.Context, page pagination.PageRequest, vectorID *uuid.UUID) (*pagination.PageResult[triage.Correction], error)

	Stats(ctx context.Context) (triage.Stats, error)
}

// VectorFilter narrows ListVectors. Zero-valued fields are ignored.
type VectorFilter struct {
	Zones     []triage.Zone
	States    []triage.LifecycleState
	OwnerRole *string
	DueBefore *time.Time

	// Sort applies when the page request carries no sort of its own.
	Sort []query.SortField
}

// Sort orders for ListVectors.
var (
	SortNewest = []query.SortField{{Field: "CreatedAt", Descending: true}}
	SortDue    = []query.SortField{{Field: "DeadlineAt"}}
	SortDeck   = []query.SortField{
		{Field: "RiskScore", Descending: true},
		{Field: "DeadlineAt"},
	}
)

// Transition is a conditional lifecycle update. Nil pointer fields are left unchanged.
type Transition struct {
	VectorID  uuid.UUID
	From      []triage.LifecycleState
	To        triage.LifecycleState
	DueBefore *time.Time

	OwnerRole      *string
	DeadlineAt     *time.Time
	EscalationTier *int

	Event       triage.EventType
	Description string
	At          time.Time
}

// CorrectionWrite describes one zone correction.
type CorrectionWrite struct {
	VectorID uuid.UUID
	FromZone triage.Zone
	ToZone   triage.Zone
	Actor    string
	At       time.Time
}

// CorrectionResult carries everything a correction produced.
type CorrectionResult struct {
	Vector     triage.StateVector
	Correction triage.Correction
	Rule       triage.RuleOverride
}
