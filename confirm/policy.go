// Package confirm implements the debounce that guards notifications: a new
// state is only trusted after it has been observed on a configurable number
// of consecutive checks with no disagreeing observation in between.
//
// The policy is a pure state machine over the baseline's pending fields; it
// performs no I/O. Callers persist the returned baseline.
package confirm

import (
	"github.com/yairfalse/shelfwatch/types"
)

// DefaultChecks is the consecutive-observation count a transition needs
// before it is confirmed.
const DefaultChecks = 2

// Policy decides when an observed state becomes the confirmed baseline.
type Policy struct {
	// Checks is the number of consecutive agreeing observations required.
	// Values below 1 behave as 1 (confirm immediately).
	Checks int
}

// NewPolicy creates a policy with the given debounce count, applying
// DefaultChecks when checks is zero.
func NewPolicy(checks int) *Policy {
	if checks == 0 {
		checks = DefaultChecks
	}
	return &Policy{Checks: checks}
}

// Confirm feeds one observation into the debounce.
//
// It returns whether the observation's state is now the confirmed state as
// of this check, and the updated baseline to persist. Confirmed is false
// when the state was already confirmed before this check; it is true only
// at the moment of promotion (or baseline establishment).
//
// The very first observation of a target establishes the baseline directly
// as confirmed but reports confirmed=false: first sight of a shop is not a
// change. Error snapshots never reach this code path; the scheduler treats
// an inconclusive probe as no observation at all.
func (p *Policy) Confirm(snap types.Snapshot, baseline *types.Baseline) (bool, *types.Baseline) {
	checks := p.Checks
	if checks < 1 {
		checks = 1
	}

	if baseline == nil || baseline.Confirmed == nil {
		b := baseline
		if b == nil {
			b = &types.Baseline{}
		}
		b.Confirmed = &snap
		b.Pending = nil
		b.PendingCount = 0
		return false, b
	}

	// Observation agrees with the confirmed state: any pending transition
	// was a blip, discard it.
	if snap.StateEquals(*baseline.Confirmed) {
		baseline.Pending = nil
		baseline.PendingCount = 0
		return false, baseline
	}

	// Observation agrees with the pending state: one more vote.
	if baseline.Pending != nil && snap.StateEquals(*baseline.Pending) {
		baseline.PendingCount++
	} else {
		// New disagreeing state: restart the debounce from this observation.
		baseline.Pending = &snap
		baseline.PendingCount = 1
	}

	if baseline.PendingCount >= checks {
		baseline.Confirmed = baseline.Pending
		baseline.Pending = nil
		baseline.PendingCount = 0
		return true, baseline
	}

	return false, baseline
}
