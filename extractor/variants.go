package extractor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/yairfalse/shelfwatch/types"
)

// VariantExtractor probes a product page for per-SKU availability
// (size/color variants).
//
// Shopify-style stores embed the product JSON in a script tag; that is the
// primary source. When no embedded JSON is found, the DOM's variant
// controls are read instead.
type VariantExtractor struct {
	Client *http.Client
}

func (e *VariantExtractor) Probe(ctx context.Context, target types.MonitoredTarget) (types.Snapshot, error) {
	doc, err := fetchDocument(ctx, e.Client, target.URL)
	if err != nil {
		return errSnapshot(), err
	}

	variants, method := extractVariantsJSON(doc)
	if variants == nil {
		variants = extractVariantsDOM(doc)
		method = types.MethodFallback
	}
	if variants == nil {
		return errSnapshot(), structureErr(target.URL, "no variant data in page")
	}

	snap := types.Snapshot{
		Variants:   variants,
		ObservedAt: time.Now().UTC(),
		Method:     method,
	}

	snap.Status = types.StatusUnavailable
	for _, v := range variants {
		if v.Available {
			snap.Status = types.StatusAvailable
			break
		}
	}
	return snap, nil
}

// extractVariantsJSON reads embedded product JSON. It accepts both a bare
// product object and a wrapper with a "product" field.
func extractVariantsJSON(doc *goquery.Document) ([]types.VariantState, types.Method) {
	var variants []types.VariantState

	doc.Find("script[type='application/json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := s.Text()
		if !gjson.Valid(raw) {
			return true
		}

		arr := gjson.Get(raw, "variants")
		if !arr.Exists() {
			arr = gjson.Get(raw, "product.variants")
		}
		if !arr.IsArray() {
			return true
		}

		arr.ForEach(func(_, v gjson.Result) bool {
			variants = append(variants, variantFromJSON(v))
			return true
		})
		return variants == nil
	})

	if variants == nil {
		return nil, ""
	}
	return variants, types.MethodPrecise
}

func variantFromJSON(v gjson.Result) types.VariantState {
	size := v.Get("option1").String()
	color := v.Get("option2").String()

	key := v.Get("title").String()
	if key == "" {
		key = strings.TrimSpace(fmt.Sprintf("%s / %s", color, size))
	}

	return types.VariantState{
		Key:       key,
		Size:      size,
		Color:     color,
		Available: v.Get("available").Bool(),
	}
}

// extractVariantsDOM falls back to the page's variant controls: select
// options and size swatches, where a disabled control means sold out.
func extractVariantsDOM(doc *goquery.Document) []types.VariantState {
	var variants []types.VariantState

	doc.Find("select[name='size'] option, select[data-variant-select] option").Each(func(_ int, s *goquery.Selection) {
		label := strings.TrimSpace(s.Text())
		if label == "" || strings.EqualFold(label, "select size") {
			return
		}
		_, disabled := s.Attr("disabled")
		variants = append(variants, types.VariantState{
			Key:       label,
			Size:      label,
			Available: !disabled,
		})
	})

	if variants == nil {
		doc.Find("[data-variant-option]").Each(func(_ int, s *goquery.Selection) {
			label := strings.TrimSpace(s.Text())
			if label == "" {
				return
			}
			_, disabled := s.Attr("disabled")
			soldOut := disabled || s.HasClass("sold-out") || s.HasClass("disabled")
			variants = append(variants, types.VariantState{
				Key:       label,
				Size:      label,
				Available: !soldOut,
			})
		})
	}

	return variants
}
