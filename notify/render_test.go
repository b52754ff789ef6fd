package notify

import (
	"strings"
	"testing"

	"github.com/yairfalse/shelfwatch/types"
)

func TestRenderIsCompleteAndDeterministic(t *testing.T) {
	target := types.MonitoredTarget{
		ID:   "https://shop.example.com/new",
		URL:  "https://shop.example.com/new",
		Name: "new arrivals",
	}
	cs := types.ChangeSet{
		AddedItemIDs:   []string{"z-item", "a-item", "m-item"},
		RemovedItemIDs: []string{"old-item"},
		CountDelta:     types.IntPtr(2),
		VariantTransitions: []types.VariantTransition{
			{Key: "Black / M", FromAvailable: false, ToAvailable: true},
		},
	}
	snap := types.Snapshot{Status: types.StatusAvailable, Count: types.IntPtr(119)}

	msg := Render(target, cs, snap)

	// completeness: every item and transition appears
	for _, want := range []string{"z-item", "a-item", "m-item", "old-item", "Black / M", "119", "+2"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body missing %q:\n%s", want, msg.Body)
		}
	}

	// determinism: added items come out sorted
	if strings.Index(msg.Body, "a-item") > strings.Index(msg.Body, "m-item") ||
		strings.Index(msg.Body, "m-item") > strings.Index(msg.Body, "z-item") {
		t.Errorf("added items not sorted:\n%s", msg.Body)
	}

	again := Render(target, cs, snap)
	if msg != again {
		t.Error("rendering the same change set twice must produce identical output")
	}

	if !strings.Contains(msg.Subject, "3 new item(s)") {
		t.Errorf("subject = %q", msg.Subject)
	}
}

func TestRenderSubjects(t *testing.T) {
	target := types.MonitoredTarget{Name: "hoodie", URL: "https://shop.example.com/hoodie"}

	tests := []struct {
		name string
		cs   types.ChangeSet
		want string
	}{
		{
			name: "launch",
			cs: types.ChangeSet{StatusTransition: &types.StatusTransition{
				From: types.StatusComingSoon, To: types.StatusAvailable,
			}},
			want: "now available",
		},
		{
			name: "restock",
			cs: types.ChangeSet{VariantTransitions: []types.VariantTransition{
				{Key: "Black / M", FromAvailable: false, ToAvailable: true},
			}},
			want: "restock",
		},
		{
			name: "removal only",
			cs:   types.ChangeSet{RemovedItemIDs: []string{"x"}},
			want: "removed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Render(target, tt.cs, types.Snapshot{Status: types.StatusAvailable})
			if !strings.Contains(msg.Subject, tt.want) {
				t.Errorf("subject = %q, want substring %q", msg.Subject, tt.want)
			}
		})
	}
}

func TestRenderErrorMentionsCause(t *testing.T) {
	target := types.MonitoredTarget{Name: "hoodie", URL: "https://shop.example.com/hoodie"}
	msg := RenderError(target, errProbe)
	if !strings.Contains(msg.Body, errProbe.Error()) {
		t.Errorf("error body missing cause: %q", msg.Body)
	}
	if !strings.Contains(msg.Subject, "check failing") {
		t.Errorf("subject = %q", msg.Subject)
	}
}
