// Package diff turns two observations of the same target into the semantic
// difference a subscriber would care about.
package diff

import (
	"github.com/yairfalse/shelfwatch/types"
)

// Engine computes change sets. Stateless; safe for concurrent use.
type Engine struct{}

// NewEngine creates a diff engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Diff compares a new snapshot against the confirmed baseline snapshot.
//
// The precise item-id set diff is always preferred when both sides carry
// one, regardless of which method produced the count. A side without item
// ids is count-only and never compared against a stale id set. An error
// snapshot on either side yields an empty change set: an inconclusive
// probe is not a transition.
func (e *Engine) Diff(current types.Snapshot, baseline *types.Snapshot) types.ChangeSet {
	var cs types.ChangeSet

	if baseline == nil {
		return cs
	}
	if current.Status == types.StatusError || baseline.Status == types.StatusError {
		return cs
	}

	if current.HasItemIDs() && baseline.HasItemIDs() {
		cs.AddedItemIDs, cs.RemovedItemIDs = diffIDSets(baseline.ItemIDs, current.ItemIDs)
	}

	if newCount, ok := current.CountValue(); ok {
		if oldCount, ok := baseline.CountValue(); ok && newCount != oldCount {
			cs.CountDelta = types.IntPtr(newCount - oldCount)
		}
	}

	cs.VariantTransitions = diffVariants(baseline.Variants, current.Variants)

	if current.Status != baseline.Status {
		cs.StatusTransition = &types.StatusTransition{
			From: baseline.Status,
			To:   current.Status,
		}
	}

	return cs
}

func diffIDSets(old, new []string) (added, removed []string) {
	oldSet := make(map[string]struct{}, len(old))
	for _, id := range old {
		oldSet[id] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(new))
	for _, id := range new {
		newSet[id] = struct{}{}
	}

	for _, id := range new {
		if _, ok := oldSet[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range old {
		if _, ok := newSet[id]; !ok {
			removed = append(removed, id)
		}
	}

	if added != nil {
		added = types.SortedIDs(added)
	}
	if removed != nil {
		removed = types.SortedIDs(removed)
	}
	return added, removed
}

// diffVariants compares availability per key; keys not present on both
// sides are not compared.
func diffVariants(old, new []types.VariantState) []types.VariantTransition {
	oldByKey := make(map[string]types.VariantState, len(old))
	for _, v := range old {
		oldByKey[v.Key] = v
	}

	var transitions []types.VariantTransition
	for _, v := range new {
		prev, ok := oldByKey[v.Key]
		if !ok || prev.Available == v.Available {
			continue
		}
		transitions = append(transitions, types.VariantTransition{
			Key:           v.Key,
			Size:          v.Size,
			Color:         v.Color,
			FromAvailable: prev.Available,
			ToAvailable:   v.Available,
		})
	}
	return transitions
}
