// Package extractor probes monitored pages and normalizes what it sees
// into snapshots. One extractor per site kind; all of them are
// side-effect-free on the rest of the system and surface failures as
// typed probe errors.
package extractor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/yairfalse/shelfwatch/types"
)

// Extractor probes one target and returns a normalized snapshot.
type Extractor interface {
	Probe(ctx context.Context, target types.MonitoredTarget) (types.Snapshot, error)
}

// Registry maps site kinds to extractors.
type Registry struct {
	byKind map[types.SiteKind]Extractor
}

// NewRegistry wires the built-in extractors over the given HTTP client.
func NewRegistry(client *http.Client) *Registry {
	return &Registry{
		byKind: map[types.SiteKind]Extractor{
			types.KindCatalog: &CatalogExtractor{Client: client},
			types.KindVariant: &VariantExtractor{Client: client},
			types.KindListing: &ListingExtractor{Client: client},
		},
	}
}

// ForKind returns the extractor for a site kind.
func (r *Registry) ForKind(kind types.SiteKind) (Extractor, error) {
	e, ok := r.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("no extractor for site kind %q", kind)
	}
	return e, nil
}

// Probe dispatches to the extractor matching the target's kind.
func (r *Registry) Probe(ctx context.Context, target types.MonitoredTarget) (types.Snapshot, error) {
	e, err := r.ForKind(target.Kind)
	if err != nil {
		return types.Snapshot{}, err
	}
	return e.Probe(ctx, target)
}
