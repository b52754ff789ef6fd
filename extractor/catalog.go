package extractor

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yairfalse/shelfwatch/types"
)

// Count phrases like "Showing 24 of 116", "116 items", "116 results",
// "116 products". The last number in the phrase is the total.
var (
	showingOfRe = regexp.MustCompile(`(?i)showing\s+\d+\s+of\s+(\d+)`)
	countWordRe = regexp.MustCompile(`(?i)(\d+)\s+(?:items?|results?|products?|styles?)`)
)

// itemSelectors locate product tiles across common storefront layouts.
// Tried in order; the first selector with any matches wins.
var itemSelectors = []string{
	"[data-product-id]",
	"[data-item-id]",
	".product-card",
	".product-tile",
	"li.product",
	".product-grid__item",
}

// CatalogExtractor probes brand/category pages: how many items are listed
// and, when the markup allows, exactly which ones.
//
// Detection is layered: the text-based count is tried first, then a
// structural element count if no phrase parses. The precise item-id pass
// runs regardless of which count path succeeded, because set-diff accuracy
// must not depend on the count method.
type CatalogExtractor struct {
	Client *http.Client
}

func (e *CatalogExtractor) Probe(ctx context.Context, target types.MonitoredTarget) (types.Snapshot, error) {
	doc, err := fetchDocument(ctx, e.Client, target.URL)
	if err != nil {
		return errSnapshot(), err
	}

	snap := types.Snapshot{
		ObservedAt: time.Now().UTC(),
	}

	if count, ok := extractTextCount(doc); ok {
		snap.Count = types.IntPtr(count)
		snap.Method = types.MethodPrimary
	} else if count, ok := extractStructuralCount(doc); ok {
		snap.Count = types.IntPtr(count)
		snap.Method = types.MethodFallback
	}

	if ids := extractItemIDs(doc); ids != nil {
		snap.ItemIDs = ids
		snap.Method = types.MethodPrecise
		if snap.Count == nil {
			snap.Count = types.IntPtr(len(ids))
		}
	}

	if snap.Count == nil && snap.ItemIDs == nil {
		return errSnapshot(), structureErr(target.URL, "no count phrase, no product elements")
	}

	count, _ := snap.CountValue()
	if count > 0 {
		snap.Status = types.StatusAvailable
	} else {
		snap.Status = types.StatusUnavailable
	}

	return snap, nil
}

func extractTextCount(doc *goquery.Document) (int, bool) {
	text := doc.Find("body").Text()

	if m := showingOfRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}
	if m := countWordRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}
	return 0, false
}

func extractStructuralCount(doc *goquery.Document) (int, bool) {
	for _, sel := range itemSelectors {
		if n := doc.Find(sel).Length(); n > 0 {
			return n, true
		}
	}
	return 0, false
}

// extractItemIDs collects stable item identifiers: explicit data attributes
// first, product link paths as a fallback. Returns nil when the page gives
// nothing to identify items by, which downgrades the snapshot to count-only.
func extractItemIDs(doc *goquery.Document) []string {
	seen := map[string]struct{}{}
	var ids []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	doc.Find("[data-product-id]").Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("data-product-id"); ok {
			add(id)
		}
	})
	doc.Find("[data-item-id]").Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("data-item-id"); ok {
			add(id)
		}
	})

	if ids == nil {
		doc.Find("a[href*='/products/'], a[href*='/product/'], a[href*='/item/']").Each(func(_ int, s *goquery.Selection) {
			if href, ok := s.Attr("href"); ok {
				add(productPath(href))
			}
		})
	}

	return ids
}

func productPath(href string) string {
	href = strings.SplitN(href, "?", 2)[0]
	href = strings.SplitN(href, "#", 2)[0]
	return strings.TrimSuffix(href, "/")
}

func errSnapshot() types.Snapshot {
	return types.Snapshot{Status: types.StatusError, ObservedAt: time.Now().UTC()}
}
