// Package corrections is the feedback loop: a user reclassifies a vector, the
// change is audited, and the sender's learned override is updated so future
// messages from that sender land in the corrected zone.
package corrections

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/pagination"
)

// RulePublisher receives overrides after they commit.
type RulePublisher interface {
	Observe(rule triage.RuleOverride)
}

// Applied is the outcome of one correction request.
type Applied struct {
	Vector     triage.StateVector   `json:"vector"`
	Correction *triage.Correction   `json:"correction,omitempty"`
	Rule       *triage.RuleOverride `json:"rule,omitempty"`
	// Changed is false when the vector was already in the requested zone.
	Changed bool `json:"changed"`
}

// System defines the correction operations.
type System interface {
	Handler() *Handler

	// Apply moves the vector to zone and teaches the sender override.
	// Correcting to the current zone is a no-op.
	Apply(ctx context.Context, vectorID uuid.UUID, zone triage.Zone, actor string) (*Applied, error)

	// List pages through the audit log, optionally for one vector.
	List(ctx context.Context, page pagination.PageRequest, vectorID *uuid.UUID) (*pagination.PageResult[triage.Correction], error)
}
