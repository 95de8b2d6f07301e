package domain

import (
	"fmt"
	"math"
)

// BoundingBox is a rectangular geographic query region in WGS-84 degrees.
// Invariant: MinLat < MaxLat and MinLon < MaxLon.
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLon float64 `json:"minLon"`
	MaxLon float64 `json:"maxLon"`
}

// NewBoundingBox validates the corner ordering and coordinate ranges.
func NewBoundingBox(minLat, maxLat, minLon, maxLon float64) (BoundingBox, error) {
	b := BoundingBox{MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon}
	if err := b.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return b, nil
}

// BBoxFromCenter builds a box around a center point with the given half-width
// in degrees. This is how per-request boxes are created from field coordinates.
func BBoxFromCenter(lat, lon, halfWidth float64) (BoundingBox, error) {
	if halfWidth <= 0 {
		return BoundingBox{}, fmt.Errorf("bbox half-width must be positive, got %g", halfWidth)
	}
	return NewBoundingBox(lat-halfWidth, lat+halfWidth, lon-halfWidth, lon+halfWidth)
}

// Validate reports malformed coordinates. A bad box is a caller bug, not a
// data-availability condition, so this is a hard error.
func (b BoundingBox) Validate() error {
	if math.IsNaN(b.MinLat) || math.IsNaN(b.MaxLat) || math.IsNaN(b.MinLon) || math.IsNaN(b.MaxLon) {
		return fmt.Errorf("bounding box contains NaN: %+v", b)
	}
	if b.MinLat >= b.MaxLat || b.MinLon >= b.MaxLon {
		return fmt.Errorf("degenerate bounding box: %+v", b)
	}
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLon < -180 || b.MaxLon > 180 {
		return fmt.Errorf("bounding box out of range: %+v", b)
	}
	return nil
}

// Widened returns a copy grown by delta degrees on every side, used when a
// retry attempt needs a larger search footprint. Latitudes are clamped to the
// valid range; the original box is unchanged.
func (b BoundingBox) Widened(delta float64) BoundingBox {
	return BoundingBox{
		MinLat: math.Max(b.MinLat-delta, -90),
		MaxLat: math.Min(b.MaxLat+delta, 90),
		MinLon: math.Max(b.MinLon-delta, -180),
		MaxLon: math.Min(b.MaxLon+delta, 180),
	}
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// India's outer bounding box, used by the source-selection heuristic.
const (
	indiaMinLat = 8.4
	indiaMaxLat = 37.6
	indiaMinLon = 68.7
	indiaMaxLon = 97.25
)

// InIndia reports whether a coordinate falls inside India's outer bounds.
func InIndia(lat, lon float64) bool {
	return lat >= indiaMinLat && lat <= indiaMaxLat && lon >= indiaMinLon && lon <= indiaMaxLon
}
