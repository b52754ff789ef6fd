// Package types defines the core data model shared by every shelfwatch
// component: monitored targets, snapshots, baselines, change sets and the
// audit records produced by a check.
package types

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SiteKind selects the extraction strategy for a target.
type SiteKind string

const (
	// KindCatalog tracks a brand/category page: item count and item-id set.
	KindCatalog SiteKind = "catalog"

	// KindVariant tracks per-SKU availability (sizes, colors) on one listing.
	KindVariant SiteKind = "variant"

	// KindListing tracks a single listing's coarse status (coming_soon/available).
	KindListing SiteKind = "listing"
)

// Valid reports whether k is a recognized site kind.
func (k SiteKind) Valid() bool {
	switch k {
	case KindCatalog, KindVariant, KindListing:
		return true
	}
	return false
}

// MonitoredTarget is one remote entity under watch. It is owned by the
// configuration/API layer; the check pipeline treats it as read-only.
type MonitoredTarget struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Kind         SiteKind  `json:"kind"`
	Name         string    `json:"name,omitempty"`
	TargetSizes  []string  `json:"target_sizes,omitempty"`
	TargetColors []string  `json:"target_colors,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewTarget builds a target with a normalized identity derived from rawURL.
func NewTarget(rawURL string, kind SiteKind, name string) (MonitoredTarget, error) {
	id, err := NormalizeTargetID(rawURL)
	if err != nil {
		return MonitoredTarget{}, err
	}
	if !kind.Valid() {
		return MonitoredTarget{}, fmt.Errorf("unknown site kind %q", kind)
	}
	return MonitoredTarget{
		ID:        id,
		URL:       rawURL,
		Kind:      kind,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NormalizeTargetID derives the stable identity key for a target URL.
// Scheme and host are lowercased, default ports, fragments and trailing
// slashes are dropped, so cosmetic URL variants map to one target.
func NormalizeTargetID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse target url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q in target url", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("target url %q has no host", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	// only the scheme's own default port is cosmetic
	switch u.Scheme {
	case "http":
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case "https":
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), nil
}

// WantsVariant reports whether a variant with the given size/color passes
// the target's filter criteria. Empty criteria match everything.
func (t MonitoredTarget) WantsVariant(size, color string) bool {
	if len(t.TargetSizes) > 0 && !containsFold(t.TargetSizes, size) {
		return false
	}
	if len(t.TargetColors) > 0 && !containsFold(t.TargetColors, color) {
		return false
	}
	return true
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
