package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/query"
	"github.com/JaimeStill/triage/pkg/repository"
)

var vectorProjection = query.
	NewProjectionMap("public", "state_vectors", "v").
	Project("id", "ID").
	Project("grant_id", "GrantID").
	Project("source_message_id", "SourceMessageID").
	Project("sender", "Sender").
	Project("subject", "Subject").
	Project("intent_label", "IntentLabel").
	Project("owner_role", "OwnerRole").
	Project("deadline_at", "DeadlineAt").
	Project("escalation_tier", "EscalationTier").
	Project("risk_score", "RiskScore").
	Project("confidence", "Confidence").
	Project("context", "Context").
	Project("lifecycle_state", "LifecycleState").
	Project("zone", "Zone").
	Project("summary", "Summary").
	Project("reason", "Reason").
	Project("llm_fallback", "Fallback").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var eventProjection = query.
	NewProjectionMap("public", "vector_events", "e").
	Project("id", "ID").
	Project("vector_id", "VectorID").
	Project("event_type", "Type").
	Project("description", "Description").
	Project("created_at", "CreatedAt")

var ruleProjection = query.
	NewProjectionMap("public", "rule_overrides", "r").
	Project("namespace", "Namespace").
	Project("sender_key", "Sender").
	Project("zone", "Zone").
	Project("version", "Version").
	Project("updated_at", "UpdatedAt")

var correctionProjection = query.
	NewProjectionMap("public", "corrections", "c").
	Project("id", "ID").
	Project("vector_id", "VectorID").
	Project("namespace", "Namespace").
	Project("sender_key", "Sender").
	Project("old_zone", "OldZone").
	Project("new_zone", "NewZone").
	Project("actor", "Actor").
	Project("created_at", "CreatedAt")

func scanVector(s repository.Scanner) (triage.StateVector, error) {
	var v triage.StateVector
	var contextRaw []byte

	err := s.Scan(
		&v.ID,
		&v.GrantID,
		&v.SourceMessageID,
		&v.Sender,
		&v.Subject,
		&v.IntentLabel,
		&v.OwnerRole,
		&v.DeadlineAt,
		&v.EscalationTier,
		&v.RiskScore,
		&v.Confidence,
		&contextRaw,
		&v.LifecycleState,
		&v.Zone,
		&v.Summary,
		&v.Reason,
		&v.Fallback,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return v, err
	}

	if len(contextRaw) > 0 {
		if err := json.Unmarshal(contextRaw, &v.Context); err != nil {
			return v, fmt.Errorf("unmarshal context: %w", err)
		}
	}
	if v.Context == nil {
		v.Context = map[string]any{}
	}

	return v, nil
}

func scanEvent(s repository.Scanner) (triage.Event, error) {
	var e triage.Event
	err := s.Scan(
		&e.ID,
		&e.VectorID,
		&e.Type,
		&e.Description,
		&e.CreatedAt,
	)
	return e, err
}

func scanRule(s repository.Scanner) (triage.RuleOverride, error) {
	var r triage.RuleOverride
	err := s.Scan(
		&r.Namespace,
		&r.Sender,
		&r.Zone,
		&r.Version,
		&r.UpdatedAt,
	)
	return r, err
}

// scanCorrection reads vector_id as nullable: the audit row outlives a
// deleted vector.
func scanCorrection(s repository.Scanner) (triage.Correction, error) {
	var (
		c        triage.Correction
		vectorID uuid.NullUUID
	)
	err := s.Scan(
		&c.ID,
		&vectorID,
		&c.Namespace,
		&c.Sender,
		&c.OldZone,
		&c.NewZone,
		&c.Actor,
		&c.CreatedAt,
	)
	c.VectorID = vectorID.UUID
	return c, err
}
