package types

import "time"

// Baseline is the last confirmed state of a target plus the debounce
// bookkeeping that guards against trusting a single observation.
//
// Only the confirmation policy mutates a Baseline; the storage layer
// persists it after every mutation. Revision is the compare-and-swap token
// assigned by storage, never set by callers.
type Baseline struct {
	TargetID string `json:"target_id"`

	// Confirmed is the last confirmed snapshot. Nil only in the zero value;
	// a stored baseline always has one.
	Confirmed *Snapshot `json:"confirmed,omitempty"`

	// Pending is a newly observed, not yet trusted state. Cleared whenever
	// an observation disagrees with it or when it is promoted.
	Pending      *Snapshot `json:"pending,omitempty"`
	PendingCount int       `json:"pending_count,omitempty"`

	// Dedup state: the exact state the last alert was raised for. A
	// confirmed state only dedups against this full snapshot; any distinct
	// confirmed transition must alert again.
	LastNotified *Snapshot `json:"last_notified,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
	Revision  int64     `json:"revision"`
}

// ConfirmedSnapshot returns the confirmed snapshot or nil.
func (b *Baseline) ConfirmedSnapshot() *Snapshot {
	if b == nil {
		return nil
	}
	return b.Confirmed
}

// MarkNotified records that an alert was raised for the given snapshot,
// so an identical confirmed state never alerts twice.
func (b *Baseline) MarkNotified(s Snapshot) {
	cp := s
	b.LastNotified = &cp
}

// AlreadyNotified reports whether the given snapshot matches the state the
// last alert was raised for. The comparison covers the whole state (status,
// count, item set, variant availability): a second genuine transition that
// keeps status and item IDs but moves the count or flips a different
// variant is a new alert, not a duplicate.
func (b *Baseline) AlreadyNotified(s Snapshot) bool {
	if b == nil || b.LastNotified == nil {
		return false
	}
	return b.LastNotified.StateEquals(s)
}
