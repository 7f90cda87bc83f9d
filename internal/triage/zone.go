// Package triage defines the shared vocabulary of the escalation engine:
// priority zones, lifecycle states, event types, and the records that flow
// between classification, persistence, escalation, and correction.
package triage

import (
	"fmt"
	"strings"
)

// Zone is a priority bucket used for triage ordering.
type Zone string

// Priority zones, most urgent first.
const (
	ZoneStat     Zone = "STAT"
	ZoneToday    Zone = "TODAY"
	ZoneThisWeek Zone = "THIS_WEEK"
	ZoneLater    Zone = "LATER"
)

// Zones lists every zone in urgency order.
var Zones = []Zone{ZoneStat, ZoneToday, ZoneThisWeek, ZoneLater}

// Valid reports whether z is one of the known zones.
func (z Zone) Valid() bool {
	switch z {
	case ZoneStat, ZoneToday, ZoneThisWeek, ZoneLater:
		return true
	}
	return false
}

// Rank orders zones by urgency: STAT is 0, LATER is 3. Unknown zones rank last.
func (z Zone) Rank() int {
	switch z {
	case ZoneStat:
		return 0
	case ZoneToday:
		return 1
	case ZoneThisWeek:
		return 2
	}
	return 3
}

// ParseZone accepts a zone name in any case, with spaces or hyphens in place of underscores.
func ParseZone(s string) (Zone, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)

	z := Zone(normalized)
	if !z.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidZone, s)
	}
	return z, nil
}

// LifecycleState is the position of a state vector in its lifecycle.
type LifecycleState string

// Lifecycle states. COMPLETED is absorbing.
const (
	StateNew       LifecycleState = "NEW"
	StateWaiting   LifecycleState = "WAITING"
	StateOverdue   LifecycleState = "OVERDUE"
	StateCompleted LifecycleState = "COMPLETED"
)

// ActiveStates lists every non-terminal state.
var ActiveStates = []LifecycleState{StateNew, StateWaiting, StateOverdue}

// Active reports whether s is non-terminal.
func (s LifecycleState) Active() bool {
	return s != StateCompleted
}

// EventType classifies an entry in a vector's event log.
type EventType string

// Event types.
const (
	EventCreated      EventType = "CREATED"
	EventStateChanged EventType = "STATE_CHANGED"
	EventOwnerChanged EventType = "OWNER_CHANGED"
	EventCorrected    EventType = "CORRECTED"
	EventEscalated    EventType = "ESCALATED"
)
