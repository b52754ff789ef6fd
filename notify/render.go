package notify

import (
	"fmt"
	"strings"

	"github.com/yairfalse/shelfwatch/types"
)

// Render turns a confirmed change set into a message. Rendering is
// deterministic (item lists sorted) and complete: every added and removed
// item and every variant transition appears in the body.
func Render(target types.MonitoredTarget, cs types.ChangeSet, snap types.Snapshot) Message {
	name := target.Name
	if name == "" {
		name = target.URL
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Target: %s\nURL: %s\n", name, target.URL)

	if cs.StatusTransition != nil {
		fmt.Fprintf(&b, "Status: %s -> %s\n", cs.StatusTransition.From, cs.StatusTransition.To)
	}

	if count, ok := snap.CountValue(); ok {
		if cs.CountDelta != nil {
			fmt.Fprintf(&b, "Items: %d (%+d)\n", count, *cs.CountDelta)
		} else {
			fmt.Fprintf(&b, "Items: %d\n", count)
		}
	}

	if len(cs.AddedItemIDs) > 0 {
		b.WriteString("\nNew items:\n")
		for _, id := range types.SortedIDs(cs.AddedItemIDs) {
			fmt.Fprintf(&b, "  + %s\n", id)
		}
	}
	if len(cs.RemovedItemIDs) > 0 {
		b.WriteString("\nRemoved items:\n")
		for _, id := range types.SortedIDs(cs.RemovedItemIDs) {
			fmt.Fprintf(&b, "  - %s\n", id)
		}
	}

	if len(cs.VariantTransitions) > 0 {
		b.WriteString("\nVariants:\n")
		for _, tr := range cs.VariantTransitions {
			fmt.Fprintf(&b, "  %s: %s -> %s\n", tr.Key, availLabel(tr.FromAvailable), availLabel(tr.ToAvailable))
		}
	}

	return Message{
		TargetID: target.ID,
		Subject:  subjectFor(name, cs),
		Body:     b.String(),
	}
}

// RenderError builds the message sent when a target's probes keep failing.
func RenderError(target types.MonitoredTarget, probeErr error) Message {
	name := target.Name
	if name == "" {
		name = target.URL
	}
	return Message{
		TargetID: target.ID,
		Subject:  fmt.Sprintf("[shelfwatch] check failing: %s", name),
		Body:     fmt.Sprintf("Target: %s\nURL: %s\nError: %v\n", name, target.URL, probeErr),
	}
}

func subjectFor(name string, cs types.ChangeSet) string {
	switch {
	case cs.StatusTransition != nil && cs.StatusTransition.To == types.StatusAvailable:
		return fmt.Sprintf("[shelfwatch] now available: %s", name)
	case len(cs.AddedItemIDs) > 0:
		return fmt.Sprintf("[shelfwatch] %d new item(s): %s", len(cs.AddedItemIDs), name)
	case restockCount(cs.VariantTransitions) > 0:
		return fmt.Sprintf("[shelfwatch] restock: %s", name)
	case len(cs.RemovedItemIDs) > 0:
		return fmt.Sprintf("[shelfwatch] %d item(s) removed: %s", len(cs.RemovedItemIDs), name)
	default:
		return fmt.Sprintf("[shelfwatch] change detected: %s", name)
	}
}

func restockCount(trs []types.VariantTransition) int {
	n := 0
	for _, tr := range trs {
		if tr.Restock() {
			n++
		}
	}
	return n
}

func availLabel(available bool) string {
	if available {
		return "in stock"
	}
	return "out of stock"
}
