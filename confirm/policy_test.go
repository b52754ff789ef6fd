package confirm

import (
	"testing"

	"github.com/yairfalse/shelfwatch/types"
)

func snapWithIDs(count int, ids ...string) types.Snapshot {
	return types.Snapshot{
		Status:  types.StatusAvailable,
		Count:   types.IntPtr(count),
		ItemIDs: ids,
	}
}

func TestFirstObservationEstablishesWithoutConfirming(t *testing.T) {
	p := NewPolicy(2)

	snap := snapWithIDs(116, "a", "b")
	confirmed, b := p.Confirm(snap, nil)

	if confirmed {
		t.Error("first-ever observation must not confirm a change")
	}
	if b.Confirmed == nil || !b.Confirmed.StateEquals(snap) {
		t.Error("first observation should become the confirmed baseline")
	}
	if b.Pending != nil || b.PendingCount != 0 {
		t.Error("fresh baseline should carry no pending state")
	}
}

func TestTwoConsecutiveObservationsPromote(t *testing.T) {
	p := NewPolicy(2)

	// confirmed catalog of 116 items; three new items appear
	old := snapWithIDs(116, "a", "b", "c")
	b := &types.Baseline{Confirmed: &old}

	grown := snapWithIDs(119, "a", "b", "c", "x", "y", "z")

	confirmed, b := p.Confirm(grown, b)
	if confirmed {
		t.Fatal("first sighting of a new state must not confirm")
	}
	if b.Pending == nil || b.PendingCount != 1 {
		t.Fatalf("pending = %+v count = %d", b.Pending, b.PendingCount)
	}
	if !b.Confirmed.StateEquals(old) {
		t.Fatal("confirmed state must not move on first sighting")
	}

	confirmed, b = p.Confirm(grown, b)
	if !confirmed {
		t.Fatal("second consecutive sighting must confirm")
	}
	if !b.Confirmed.StateEquals(grown) {
		t.Error("pending state should be promoted to confirmed")
	}
	if b.Pending != nil || b.PendingCount != 0 {
		t.Error("pending fields should clear on promotion")
	}
}

func TestBlipRevertsDebounce(t *testing.T) {
	p := NewPolicy(2)

	old := snapWithIDs(116, "a")
	b := &types.Baseline{Confirmed: &old}

	// transient glitch: one observation of a shrunk catalog
	blip := snapWithIDs(115)
	confirmed, b := p.Confirm(blip, b)
	if confirmed {
		t.Fatal("blip must not confirm")
	}

	// next check sees the confirmed state again: pending is discarded
	confirmed, b = p.Confirm(old, b)
	if confirmed {
		t.Fatal("return to confirmed state is not a change")
	}
	if b.Pending != nil || b.PendingCount != 0 {
		t.Error("pending state must be discarded when the confirmed state reappears")
	}

	// the blip state showing up again later starts a fresh debounce
	confirmed, b = p.Confirm(blip, b)
	if confirmed || b.PendingCount != 1 {
		t.Errorf("restarted debounce: confirmed=%v count=%d", confirmed, b.PendingCount)
	}
}

func TestThirdStateRestartsDebounce(t *testing.T) {
	p := NewPolicy(2)

	old := snapWithIDs(100)
	b := &types.Baseline{Confirmed: &old}

	first := snapWithIDs(105)
	if confirmed, _ := p.Confirm(first, b); confirmed {
		t.Fatal("unexpected confirm")
	}

	// a different new state: debounce restarts from it
	second := snapWithIDs(110)
	confirmed, b := p.Confirm(second, b)
	if confirmed {
		t.Fatal("disagreeing observation must not confirm")
	}
	if b.PendingCount != 1 || !b.Pending.StateEquals(second) {
		t.Errorf("debounce should track the newest state: %+v count=%d", b.Pending, b.PendingCount)
	}

	if confirmed, _ = p.Confirm(second, b); !confirmed {
		t.Error("two consecutive observations of the restarted state should confirm")
	}
}

func TestChecksOfOneConfirmsImmediately(t *testing.T) {
	p := NewPolicy(1)

	old := snapWithIDs(10)
	b := &types.Baseline{Confirmed: &old}

	confirmed, b := p.Confirm(snapWithIDs(12), b)
	if !confirmed {
		t.Fatal("checks=1 should confirm on first sighting")
	}
	if got, _ := b.Confirmed.CountValue(); got != 12 {
		t.Errorf("confirmed count = %d, want 12", got)
	}
}

func TestHigherCheckCounts(t *testing.T) {
	p := NewPolicy(3)

	old := snapWithIDs(10)
	b := &types.Baseline{Confirmed: &old}
	next := snapWithIDs(12)

	for i := 0; i < 2; i++ {
		confirmed, updated := p.Confirm(next, b)
		if confirmed {
			t.Fatalf("confirmed after %d observations, want 3", i+1)
		}
		b = updated
	}
	if confirmed, _ := p.Confirm(next, b); !confirmed {
		t.Error("third consecutive observation should confirm with checks=3")
	}
}

func TestDefaultChecks(t *testing.T) {
	if p := NewPolicy(0); p.Checks != DefaultChecks {
		t.Errorf("NewPolicy(0).Checks = %d, want %d", p.Checks, DefaultChecks)
	}
}
