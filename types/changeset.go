package types

// ChangeSet is the semantic difference between a snapshot and the confirmed
// baseline it was compared against. An empty ChangeSet means "nothing a
// subscriber would care about changed".
type ChangeSet struct {
	AddedItemIDs   []string `json:"added_item_ids,omitempty"`
	RemovedItemIDs []string `json:"removed_item_ids,omitempty"`

	// CountDelta is new count minus old count, set only when both
	// observations carried a count.
	CountDelta *int `json:"count_delta,omitempty"`

	VariantTransitions []VariantTransition `json:"variant_transitions,omitempty"`
	StatusTransition   *StatusTransition   `json:"status_transition,omitempty"`
}

// VariantTransition records one variant flipping availability.
type VariantTransition struct {
	Key           string `json:"key"`
	Size          string `json:"size,omitempty"`
	Color         string `json:"color,omitempty"`
	FromAvailable bool   `json:"from_available"`
	ToAvailable   bool   `json:"to_available"`
}

// Restock reports whether the transition is unavailable -> available.
func (t VariantTransition) Restock() bool {
	return !t.FromAvailable && t.ToAvailable
}

// StatusTransition records a coarse status change (e.g. coming_soon ->
// available).
type StatusTransition struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}

// Empty reports whether the change set carries no change at all.
func (c ChangeSet) Empty() bool {
	return len(c.AddedItemIDs) == 0 &&
		len(c.RemovedItemIDs) == 0 &&
		(c.CountDelta == nil || *c.CountDelta == 0) &&
		len(c.VariantTransitions) == 0 &&
		c.StatusTransition == nil
}
