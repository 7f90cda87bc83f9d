// Package classify implements the hybrid classifier: a deterministic
// heuristic over a tiered pattern pack and learned sender overrides, backed
// by a language-model fallback when the heuristic is not confident.
package classify

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/JaimeStill/triage/internal/triage"
)

// Confidence assigned when no single rule decides the zone.
const (
	NoMatchConfidence  = 0.2
	ConflictConfidence = 0.35
	OverrideConfidence = 1.0

	corroborationBonus = 0.03
	maxHeuristic       = 0.99
)

// Reason used when a learned override decides the zone.
const ReasonRuleOverride = "rule override"

// RuleLookup reads learned sender overrides.
type RuleLookup interface {
	Lookup(ctx context.Context, key triage.RuleKey) (triage.Zone, bool, error)
}

// Heuristic scores messages against learned overrides and a pattern pack.
type Heuristic struct {
	rules RuleLookup
	pack  atomic.Pointer[Pack]
}

// NewHeuristic creates a Heuristic over the given override lookup and pack.
func NewHeuristic(rules RuleLookup, pack *Pack) *Heuristic {
	h := &Heuristic{rules: rules}
	h.pack.Store(pack)
	return h
}

// SetPack atomically replaces the pattern pack used by subsequent classifications.
func (h *Heuristic) SetPack(pack *Pack) {
	h.pack.Store(pack)
}

// Classify returns the heuristic result for m. Only a failed override lookup
// returns an error.
func (h *Heuristic) Classify(ctx context.Context, m *triage.Message) (triage.Result, error) {
	if h.rules != nil {
		zone, ok, err := h.rules.Lookup(ctx, m.RuleKey())
		if err != nil {
			return triage.Result{}, fmt.Errorf("lookup rule override: %w", err)
		}
		if ok {
			return h.override(m, zone), nil
		}
	}

	return h.score(m), nil
}

func (h *Heuristic) override(m *triage.Message, zone triage.Zone) triage.Result {
	r := h.score(m)
	r.Zone = zone
	r.Confidence = OverrideConfidence
	r.Reason = ReasonRuleOverride
	return r
}

func (h *Heuristic) score(m *triage.Message) triage.Result {
	text := m.Subject + "\n" + m.Body
	blob := Extract(text)
	pack := h.pack.Load()

	var (
		winner      *compiled
		conflict    *compiled
		corroborate int
		risk        float64
		matched     []string
	)

	for i := range pack.rules {
		rule := &pack.rules[i]
		if !rule.matches(m, text) {
			continue
		}

		matched = append(matched, rule.ID)
		risk = max(risk, rule.Risk)

		switch {
		case winner == nil:
			winner = rule
		case rule.Tier != winner.Tier:
		case rule.Zone != winner.Zone:
			if conflict == nil {
				conflict = rule
			}
		default:
			corroborate++
		}
	}

	if winner == nil {
		return triage.Result{
			Zone:       triage.ZoneLater,
			RiskScore:  0,
			Confidence: NoMatchConfidence,
			Reason:     "no pattern matched",
			Context:    blob,
		}
	}

	if conflict != nil {
		return triage.Result{
			Zone:        triage.ZoneLater,
			IntentLabel: winner.Intent,
			RiskScore:   0,
			Confidence:  ConflictConfidence,
			Reason: fmt.Sprintf(
				"conflicting patterns %s (%s) and %s (%s)",
				winner.ID, winner.Zone, conflict.ID, conflict.Zone,
			),
			Context: blob,
		}
	}

	confidence := min(maxHeuristic, winner.Confidence+float64(corroborate)*corroborationBonus)

	return triage.Result{
		Zone:        winner.Zone,
		IntentLabel: winner.Intent,
		RiskScore:   clamp(risk),
		Confidence:  confidence,
		Reason:      fmt.Sprintf("matched %s", strings.Join(matched, ", ")),
		Context:     blob,
	}
}
