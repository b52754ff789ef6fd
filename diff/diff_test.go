package diff

import (
	"reflect"
	"testing"

	"github.com/yairfalse/shelfwatch/types"
)

func TestDiffItemIDSets(t *testing.T) {
	e := NewEngine()

	baseline := &types.Snapshot{
		Status:  types.StatusAvailable,
		Count:   types.IntPtr(116),
		ItemIDs: []string{"a", "b", "c"},
	}
	current := types.Snapshot{
		Status:  types.StatusAvailable,
		Count:   types.IntPtr(119),
		ItemIDs: []string{"b", "c", "d", "e", "f", "x"},
	}

	cs := e.Diff(current, baseline)

	if !reflect.DeepEqual(cs.AddedItemIDs, []string{"d", "e", "f", "x"}) {
		t.Errorf("added = %v", cs.AddedItemIDs)
	}
	if !reflect.DeepEqual(cs.RemovedItemIDs, []string{"a"}) {
		t.Errorf("removed = %v", cs.RemovedItemIDs)
	}
	if cs.CountDelta == nil || *cs.CountDelta != 3 {
		t.Errorf("count delta = %v, want 3", cs.CountDelta)
	}
	if cs.Empty() {
		t.Error("change set should not be empty")
	}
}

func TestDiffCountOnlyNeverUsesStaleIDs(t *testing.T) {
	e := NewEngine()

	// baseline came from a precise probe, the new observation is count-only:
	// a stale id set must not be diffed against nothing
	baseline := &types.Snapshot{
		Status:  types.StatusAvailable,
		Count:   types.IntPtr(116),
		ItemIDs: []string{"a", "b"},
	}
	current := types.Snapshot{
		Status: types.StatusAvailable,
		Count:  types.IntPtr(119),
	}

	cs := e.Diff(current, baseline)

	if cs.AddedItemIDs != nil || cs.RemovedItemIDs != nil {
		t.Errorf("count-only snapshot produced id diff: +%v -%v", cs.AddedItemIDs, cs.RemovedItemIDs)
	}
	if cs.CountDelta == nil || *cs.CountDelta != 3 {
		t.Errorf("count delta = %v, want 3", cs.CountDelta)
	}
}

func TestDiffNegativeDelta(t *testing.T) {
	e := NewEngine()

	cs := e.Diff(
		types.Snapshot{Status: types.StatusAvailable, Count: types.IntPtr(110)},
		&types.Snapshot{Status: types.StatusAvailable, Count: types.IntPtr(116)},
	)
	if cs.CountDelta == nil || *cs.CountDelta != -6 {
		t.Errorf("count delta = %v, want -6", cs.CountDelta)
	}
}

func TestDiffVariantTransitions(t *testing.T) {
	e := NewEngine()

	baseline := &types.Snapshot{
		Status: types.StatusAvailable,
		Variants: []types.VariantState{
			{Key: "Black / M", Size: "M", Color: "Black", Available: false},
			{Key: "Black / L", Size: "L", Color: "Black", Available: true},
			{Key: "Red / M", Size: "M", Color: "Red", Available: true},
		},
	}
	current := types.Snapshot{
		Status: types.StatusAvailable,
		Variants: []types.VariantState{
			{Key: "Black / M", Size: "M", Color: "Black", Available: true}, // restock
			{Key: "Black / L", Size: "L", Color: "Black", Available: true}, // unchanged
			{Key: "Blue / S", Size: "S", Color: "Blue", Available: true},   // not in baseline
		},
	}

	cs := e.Diff(current, baseline)

	if len(cs.VariantTransitions) != 1 {
		t.Fatalf("transitions = %+v, want exactly the Black/M restock", cs.VariantTransitions)
	}
	tr := cs.VariantTransitions[0]
	if tr.Key != "Black / M" || !tr.Restock() {
		t.Errorf("unexpected transition %+v", tr)
	}
}

func TestDiffStatusTransition(t *testing.T) {
	e := NewEngine()

	cs := e.Diff(
		types.Snapshot{Status: types.StatusAvailable},
		&types.Snapshot{Status: types.StatusComingSoon},
	)
	if cs.StatusTransition == nil {
		t.Fatal("expected a status transition")
	}
	if cs.StatusTransition.From != types.StatusComingSoon || cs.StatusTransition.To != types.StatusAvailable {
		t.Errorf("transition = %+v", cs.StatusTransition)
	}

	same := e.Diff(
		types.Snapshot{Status: types.StatusAvailable},
		&types.Snapshot{Status: types.StatusAvailable},
	)
	if same.StatusTransition != nil {
		t.Error("equal statuses must not produce a transition")
	}
}

func TestDiffErrorSnapshotsAreInconclusive(t *testing.T) {
	e := NewEngine()

	cs := e.Diff(
		types.Snapshot{Status: types.StatusError},
		&types.Snapshot{Status: types.StatusAvailable, Count: types.IntPtr(10), ItemIDs: []string{"a"}},
	)
	if !cs.Empty() {
		t.Errorf("error snapshot produced changes: %+v", cs)
	}

	// error on the baseline side is equally inconclusive
	cs = e.Diff(
		types.Snapshot{Status: types.StatusAvailable, Count: types.IntPtr(10)},
		&types.Snapshot{Status: types.StatusError},
	)
	if !cs.Empty() {
		t.Errorf("error baseline produced changes: %+v", cs)
	}
}

func TestDiffNilBaseline(t *testing.T) {
	e := NewEngine()

	cs := e.Diff(types.Snapshot{Status: types.StatusAvailable, Count: types.IntPtr(5)}, nil)
	if !cs.Empty() {
		t.Errorf("nil baseline should yield an empty change set, got %+v", cs)
	}
}
