package runlog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/yairfalse/shelfwatch/types"
)

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir)
	if err != nil {
		t.Fatalf("open runlog: %v", err)
	}

	started := time.Now().Add(-time.Second)
	rec := types.RunRecord{
		TargetID:   "https://shop.example.com/new",
		StartedAt:  started,
		FinishedAt: time.Now(),
		Outcome:    types.RunSuccess,
		Method:     types.MethodPrecise,
		Attempts:   1,
	}
	if err := l.AppendRun(rec); err != nil {
		t.Fatal(err)
	}

	ev := types.NotificationEvent{
		TargetID:  rec.TargetID,
		Subject:   "2 new items",
		CreatedAt: time.Now(),
		Deliveries: []types.DeliveryAttempt{
			{Channel: "email", Status: types.DeliverySent, At: time.Now()},
		},
	}
	if err := l.AppendNotification(ev); err != nil {
		t.Fatal(err)
	}

	failed := types.RunRecord{
		TargetID:   "https://shop.example.com/other",
		StartedAt:  started,
		FinishedAt: time.Now(),
		Outcome:    types.RunFailed,
		Error:      "probe timeout",
	}
	if err := l.AppendRun(failed); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	var got []*Entry
	err = Replay(dir, time.Time{}, func(e *Entry) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("replayed %d entries, want 3", len(got))
	}

	if got[0].Type != EntryRun || got[0].Sequence != 1 {
		t.Errorf("first entry = %s seq %d", got[0].Type, got[0].Sequence)
	}
	if got[1].Type != EntryNotification {
		t.Errorf("second entry type = %s, want notification", got[1].Type)
	}
	if got[2].Error != "probe timeout" {
		t.Errorf("failed run error = %q", got[2].Error)
	}

	var decoded types.RunRecord
	if err := json.Unmarshal(got[0].Data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Outcome != types.RunSuccess || decoded.Method != types.MethodPrecise {
		t.Errorf("decoded run record = %+v", decoded)
	}
}

func TestHistoryFiltersAndOrders(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		outcome := types.RunSuccess
		target := "https://shop.example.com/a"
		if i%2 == 1 {
			target = "https://shop.example.com/b"
		}
		if err := l.AppendRun(types.RunRecord{
			TargetID:   target,
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
			Outcome:    outcome,
		}); err != nil {
			t.Fatal(err)
		}
		// distinct timestamps so ordering is observable
		time.Sleep(2 * time.Millisecond)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	all, err := History(dir, "", time.Time{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("History(all) = %d entries, want 5", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.After(all[i-1].Timestamp) {
			t.Fatal("history must be newest-first")
		}
	}

	onlyA, err := History(dir, "https://shop.example.com/a", time.Time{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyA) != 3 {
		t.Errorf("History(a) = %d entries, want 3", len(onlyA))
	}

	limited, err := History(dir, "", time.Time{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("History(limit=2) = %d entries, want 2", len(limited))
	}
}
