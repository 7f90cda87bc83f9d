// Package vectors owns the state-vector lifecycle: ingestion through the
// classification pipeline, the read projections, and the user commands that
// acknowledge and complete work.
package vectors

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/pagination"
)

// DeckSize caps the number of vectors returned for a role's deck.
const DeckSize = 20

// Classifier produces the final classification for a normalized message.
type Classifier interface {
	Classify(ctx context.Context, m *triage.Message) (triage.Result, error)
}

// Ingested is the outcome of one ingestion.
type Ingested struct {
	Vector triage.StateVector `json:"vector"`
	// Result is the classification computed for this call. It is nil when
	// the vector already existed and the message was not reclassified.
	Result  *triage.Result `json:"classification,omitempty"`
	Created bool           `json:"created"`
}

// System defines the state-vector operations.
type System interface {
	Handler() *Handler

	// Ingest classifies m and persists a NEW vector for it unless one
	// already exists for its (GrantID, SourceMessageID).
	Ingest(ctx context.Context, m triage.Message) (*Ingested, error)

	Find(ctx context.Context, id uuid.UUID) (*triage.StateVector, error)

	// ListActive pages through non-completed vectors, optionally in one zone,
	// soonest deadline first.
	ListActive(ctx context.Context, page pagination.PageRequest, zone *triage.Zone) (*pagination.PageResult[triage.StateVector], error)

	// ListByOwner pages through a role's non-completed vectors.
	ListByOwner(ctx context.Context, page pagination.PageRequest, role string) (*pagination.PageResult[triage.StateVector], error)

	// Deck returns up to DeckSize active vectors for role, riskiest first.
	Deck(ctx context.Context, role string) ([]triage.StateVector, error)

	// Acknowledge moves a NEW or OVERDUE vector to WAITING under owner, or
	// reassigns a WAITING vector. An empty owner keeps the current one.
	Acknowledge(ctx context.Context, id uuid.UUID, owner string) (*triage.StateVector, error)

	// Complete resolves a vector. Completing a completed vector is a no-op.
	Complete(ctx context.Context, id uuid.UUID) (*triage.StateVector, error)

	Stats(ctx context.Context) (*triage.Stats, error)
}
