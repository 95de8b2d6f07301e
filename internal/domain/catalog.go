package domain

import (
	"context"
	"sort"
	"time"
)

// SatelliteItem is a catalog-returned scene reference. Ephemeral: fetched per
// request, never persisted.
type SatelliteItem struct {
	ID         string
	Collection string
	Acquired   time.Time
	CloudCover float64           // percent; negative when the collection does not report it
	Assets     map[string]string // band asset name -> addressable URI
}

// CatalogQuery describes one imagery catalog search.
type CatalogQuery struct {
	Collection    string
	BBox          BoundingBox
	Start, End    time.Time
	MaxCloudCover float64 // <= 0 disables the cloud filter (radar collections)
	Limit         int
}

// CatalogSearcher finds scenes intersecting a bounding box. An empty result
// with a nil error means "no scene available", which is an expected condition
// the fallback chain acts on.
type CatalogSearcher interface {
	Search(ctx context.Context, q CatalogQuery) ([]SatelliteItem, error)
}

// BandFetcher retrieves one spectral band clipped to a bounding box.
// A nil grid with a nil error means the band does not usably intersect the
// request area; only transport-level failures surface as errors.
type BandFetcher interface {
	FetchBand(ctx context.Context, assetURI string, bbox BoundingBox) (BandGrid, error)
}

// SelectBestItem picks the scene with the lowest cloud cover, tie-broken by
// most recent acquisition. Returns false for an empty slice.
func SelectBestItem(items []SatelliteItem) (SatelliteItem, bool) {
	if len(items) == 0 {
		return SatelliteItem{}, false
	}
	sorted := make([]SatelliteItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := sorted[i].CloudCover, sorted[j].CloudCover
		if ci < 0 {
			ci = 0
		}
		if cj < 0 {
			cj = 0
		}
		if ci != cj {
			return ci < cj
		}
		return sorted[i].Acquired.After(sorted[j].Acquired)
	})
	return sorted[0], true
}
