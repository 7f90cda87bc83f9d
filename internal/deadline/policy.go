// Package deadline computes state-vector deadlines from zone, risk, and
// escalation tier using Fibonacci-indexed offsets.
package deadline

import (
	"time"

	"github.com/JaimeStill/triage/internal/triage"
)

// MaxOffset caps a single deadline offset. Repeated escalation saturates
// here instead of overflowing time.Duration.
const MaxOffset = 365 * 24 * time.Hour

// Policy maps zones onto Fibonacci offsets. STAT and TODAY offsets are
// counted in ShortUnit, THIS_WEEK and LATER in LongUnit.
type Policy struct {
	ShortUnit time.Duration
	LongUnit  time.Duration
	HighRisk  float64
}

// DefaultPolicy counts urgent zones in hours and deferred zones in days.
func DefaultPolicy() Policy {
	return Policy{
		ShortUnit: time.Hour,
		LongUnit:  24 * time.Hour,
		HighRisk:  0.8,
	}
}

// Fibonacci returns the i-th offset of the sequence 1, 1, 2, 3, 5, 8, ...
// Negative indexes are treated as 0.
func Fibonacci(i int) int {
	a, b := 1, 1
	for ; i > 0; i-- {
		a, b = b, a+b
	}
	return a
}

// Index returns the starting tier for a zone. A risk score at or above the
// high-risk cutoff starts one tier earlier.
func (p Policy) Index(zone triage.Zone, risk float64) int {
	var i int
	switch zone {
	case triage.ZoneStat:
		i = 0
	case triage.ZoneToday:
		i = 2
	case triage.ZoneThisWeek:
		i = 4
	default:
		i = 6
	}

	if p.HighRisk > 0 && risk >= p.HighRisk && i > 0 {
		i--
	}
	return i
}

// Unit returns the duration one offset step represents for zone.
func (p Policy) Unit(zone triage.Zone) time.Duration {
	switch zone {
	case triage.ZoneStat, triage.ZoneToday:
		return p.ShortUnit
	}
	return p.LongUnit
}

// Offset returns Fibonacci(tier) units for zone, saturating at MaxOffset.
func (p Policy) Offset(zone triage.Zone, tier int) time.Duration {
	unit := p.Unit(zone)
	if unit <= 0 {
		return 0
	}

	limit := int(MaxOffset / unit)
	a, b := 1, 1
	for i := tier; i > 0 && a < limit; i-- {
		a, b = b, a+b
	}
	if a >= limit {
		return MaxOffset
	}
	return time.Duration(a) * unit
}

// Compute returns from plus the offset at tier for zone.
func (p Policy) Compute(zone triage.Zone, tier int, from time.Time) time.Time {
	return from.Add(p.Offset(zone, tier))
}

// Initial returns the starting tier and deadline for a newly classified vector.
func (p Policy) Initial(zone triage.Zone, risk float64, from time.Time) (int, time.Time) {
	tier := p.Index(zone, risk)
	return tier, p.Compute(zone, tier, from)
}

// Next advances tier by one step and recomputes the deadline from now.
func (p Policy) Next(zone triage.Zone, tier int, now time.Time) (int, time.Time) {
	next := tier + 1
	return next, p.Compute(zone, next, now)
}
