package triage

import (
	"time"

	"github.com/google/uuid"
)

// Result is the outcome of classifying a single message. It is a value
// object; only the fields copied onto a StateVector are persisted.
type Result struct {
	Zone              Zone           `json:"zone"`
	IntentLabel       string         `json:"intent_label"`
	RiskScore         float64        `json:"risk_score"`
	Confidence        float64        `json:"confidence"`
	Reason            string         `json:"reason"`
	HeuristicReason   string         `json:"heuristic_reason,omitempty"`
	Summary           string         `json:"summary,omitempty"`
	RecommendedAction string         `json:"recommended_action,omitempty"`
	ActionType        string         `json:"action_type,omitempty"`
	DraftReply        string         `json:"draft_reply,omitempty"`
	Context           map[string]any `json:"context,omitempty"`
	Fallback          bool           `json:"llm_fallback"`
	Degraded          bool           `json:"degraded"`
}

// StateVector is the persistent triage record for one message.
type StateVector struct {
	ID              uuid.UUID      `json:"id"`
	GrantID         string         `json:"grant_id"`
	SourceMessageID string         `json:"source_message_id"`
	Sender          string         `json:"sender"`
	Subject         string         `json:"subject"`
	IntentLabel     string         `json:"intent_label"`
	OwnerRole       string         `json:"owner_role"`
	DeadlineAt      time.Time      `json:"deadline_at"`
	EscalationTier  int            `json:"escalation_tier"`
	RiskScore       float64        `json:"risk_score"`
	Confidence      float64        `json:"confidence"`
	Context         map[string]any `json:"context"`
	LifecycleState  LifecycleState `json:"lifecycle_state"`
	Zone            Zone           `json:"zone"`
	Summary         string         `json:"summary,omitempty"`
	Reason          string         `json:"reason"`
	Fallback        bool           `json:"llm_fallback"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Overdue reports whether the vector has passed its deadline while still active.
func (v *StateVector) Overdue(now time.Time) bool {
	return v.LifecycleState.Active() && now.After(v.DeadlineAt)
}

// RuleKey returns the rule-store key of the vector's sender.
func (v *StateVector) RuleKey() RuleKey {
	return RuleKey{Namespace: v.GrantID, Sender: v.Sender}
}

// Event is an immutable entry in a vector's history.
type Event struct {
	ID          uuid.UUID `json:"id"`
	VectorID    uuid.UUID `json:"vector_id"`
	Type        EventType `json:"event_type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// RuleKey identifies a sender within a tenant rule namespace.
type RuleKey struct {
	Namespace string `json:"namespace"`
	Sender    string `json:"sender_key"`
}

// String renders the key as namespace/sender.
func (k RuleKey) String() string {
	return k.Namespace + "/" + k.Sender
}

// RuleOverride is a learned sender to zone mapping. Version increases on every
// write to the same key.
type RuleOverride struct {
	RuleKey
	Zone      Zone      `json:"zone"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Correction is the audit record of a manual reclassification.
// VectorID is uuid.Nil once the corrected vector has been deleted.
type Correction struct {
	ID        uuid.UUID `json:"id"`
	VectorID  uuid.UUID `json:"vector_id"`
	RuleKey
	OldZone   Zone      `json:"old_zone"`
	NewZone   Zone      `json:"new_zone"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats summarizes the active workload.
type Stats struct {
	ActiveByZone     map[Zone]int `json:"active_by_zone"`
	Overdue          int          `json:"overdue"`
	TotalCorrections int          `json:"total_corrections"`
}
