package extractor

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yairfalse/shelfwatch/types"
)

// ListingExtractor probes a single listing page for its coarse status:
// coming soon, available, or sold out.
type ListingExtractor struct {
	Client *http.Client
}

var comingSoonMarkers = []string{
	"coming soon",
	"notify me when available",
	"release date",
	"launching soon",
}

var soldOutMarkers = []string{
	"sold out",
	"out of stock",
	"currently unavailable",
	"no longer available",
}

func (e *ListingExtractor) Probe(ctx context.Context, target types.MonitoredTarget) (types.Snapshot, error) {
	doc, err := fetchDocument(ctx, e.Client, target.URL)
	if err != nil {
		return errSnapshot(), err
	}

	snap := types.Snapshot{
		Status:     listingStatus(doc),
		ObservedAt: time.Now().UTC(),
		Method:     types.MethodPrimary,
	}
	return snap, nil
}

// listingStatus reads the page in precedence order: an enabled add-to-cart
// control means available regardless of marketing copy elsewhere; explicit
// coming-soon copy beats sold-out copy because pre-release pages often
// show both.
func listingStatus(doc *goquery.Document) types.Status {
	if hasEnabledCartButton(doc) {
		return types.StatusAvailable
	}

	text := strings.ToLower(doc.Find("body").Text())
	for _, marker := range comingSoonMarkers {
		if strings.Contains(text, marker) {
			return types.StatusComingSoon
		}
	}
	for _, marker := range soldOutMarkers {
		if strings.Contains(text, marker) {
			return types.StatusUnavailable
		}
	}
	return types.StatusUnavailable
}

func hasEnabledCartButton(doc *goquery.Document) bool {
	found := false
	doc.Find("button[name='add'], button.add-to-cart, button[data-add-to-cart], form[action*='/cart/add'] button[type='submit']").
		EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if _, disabled := s.Attr("disabled"); !disabled {
				found = true
				return false
			}
			return true
		})
	return found
}
