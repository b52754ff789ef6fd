package types

import (
	"sort"
	"time"
)

// Status is the coarse listing state observed by a probe.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusComingSoon  Status = "coming_soon"
	StatusUnavailable Status = "unavailable"

	// StatusError marks an inconclusive probe. It never participates in
	// diffing and never becomes a confirmed baseline.
	StatusError Status = "error"
)

// Method records which extraction strategy produced a snapshot.
type Method string

const (
	// MethodPrimary is text-based count extraction ("Showing X of Y").
	MethodPrimary Method = "primary"

	// MethodFallback is structural element counting.
	MethodFallback Method = "fallback"

	// MethodPrecise is per-item identifier extraction.
	MethodPrecise Method = "precise"
)

// VariantState is the observed availability of one SKU-level variant.
// Key is the stable display key ("Black / M"); Size and Color carry the
// parts separately so target filters can match them.
type VariantState struct {
	Key       string `json:"key"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Available bool   `json:"available"`
}

// Snapshot is one point-in-time observation of a target. Immutable once
// created; a nil Count means the probe carried no count at all, which is
// distinct from a count of zero.
type Snapshot struct {
	Status     Status         `json:"status"`
	Count      *int           `json:"count,omitempty"`
	ItemIDs    []string       `json:"item_ids,omitempty"`
	Variants   []VariantState `json:"variants,omitempty"`
	ObservedAt time.Time      `json:"observed_at"`
	Method     Method         `json:"method,omitempty"`
}

// HasItemIDs reports whether the snapshot carries item-level identifiers.
// A snapshot without them is count-only and is never merged with a stale
// item-id set.
func (s Snapshot) HasItemIDs() bool {
	return s.ItemIDs != nil
}

// ItemIDSet returns the item identifiers as a set.
func (s Snapshot) ItemIDSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.ItemIDs))
	for _, id := range s.ItemIDs {
		set[id] = struct{}{}
	}
	return set
}

// CountValue returns the count and whether one was observed.
func (s Snapshot) CountValue() (int, bool) {
	if s.Count == nil {
		return 0, false
	}
	return *s.Count, true
}

// StateEquals reports whether two snapshots describe the same target state.
// ObservedAt and Method are deliberately ignored: two probes of the same
// state through different detection paths must agree, or the debounce
// would never settle.
func (s Snapshot) StateEquals(other Snapshot) bool {
	if s.Status != other.Status {
		return false
	}
	if (s.Count == nil) != (other.Count == nil) {
		return false
	}
	if s.Count != nil && *s.Count != *other.Count {
		return false
	}
	if s.HasItemIDs() != other.HasItemIDs() {
		return false
	}
	if s.HasItemIDs() && !sameIDSet(s.ItemIDs, other.ItemIDs) {
		return false
	}
	return sameVariantStates(s.Variants, other.Variants)
}

// IntPtr is a convenience for building snapshots with a literal count.
func IntPtr(n int) *int { return &n }

func sameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

func sameVariantStates(a, b []VariantState) bool {
	if len(a) != len(b) {
		return false
	}
	avail := make(map[string]bool, len(a))
	for _, v := range a {
		avail[v.Key] = v.Available
	}
	for _, v := range b {
		got, ok := avail[v.Key]
		if !ok || got != v.Available {
			return false
		}
	}
	return true
}

// SortedIDs returns a sorted copy of ids, for deterministic output.
func SortedIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}
