package domain

import (
	"math"

	"github.com/montanaflynn/stats"
)

// epsilon guards every index denominator against division by zero.
const epsilon = 1e-8

// saviL is the canonical soil-brightness correction factor for SAVI.
const saviL = 0.5

// BandGrid is a single spectral band clipped to the request's bounding box,
// stored row-major. All grids entering ComputeIndices are cropped to their
// shared minimal shape before any arithmetic.
type BandGrid [][]float64

// Rows returns the number of rows in the grid.
func (g BandGrid) Rows() int { return len(g) }

// Cols returns the number of columns, zero for an empty grid.
func (g BandGrid) Cols() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Empty reports whether the grid holds no pixels.
func (g BandGrid) Empty() bool { return g.Rows() == 0 || g.Cols() == 0 }

// IndexStats carries the aggregate statistics for one vegetation index.
// Mean and median are computed over valid pixels only; Count is the number of
// pixels whose denominator magnitude exceeded epsilon. Values are always
// finite so the struct serializes cleanly.
type IndexStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Count  int     `json:"count"`
	Status string  `json:"status"`
}

// IndexSet is the full set of vegetation indices produced for one scene.
type IndexSet struct {
	NDVI IndexStats `json:"NDVI"`
	NDMI IndexStats `json:"NDMI"`
	SAVI IndexStats `json:"SAVI"`
	NDWI IndexStats `json:"NDWI"`
}

// Index status labels.
const (
	StatusHealthy        = "healthy"
	StatusModerate       = "moderate"
	StatusNeedsAttention = "needs_attention"
	StatusNoData         = "no_data"
)

// indexThreshold holds the low/medium boundaries for one index.
// Below low is needs_attention, between low and medium is moderate,
// above medium is healthy.
type indexThreshold struct {
	low, medium float64
}

var indexThresholds = map[string]indexThreshold{
	"NDVI": {low: 0.3, medium: 0.55},
	"NDMI": {low: 0.15, medium: 0.4},
	"SAVI": {low: 0.2, medium: 0.5},
	"NDWI": {low: 0.0, medium: 0.2},
}

// ComputeIndices derives NDVI, NDMI, SAVI, and NDWI from the supplied bands.
// Red and NIR are required for a meaningful result; SWIR1 and green are
// optional and only reduce index coverage when missing. All bands are cropped
// to their common minimal shape so the arithmetic is elementwise-aligned.
func ComputeIndices(red, nir, swir1, green BandGrid) IndexSet {
	red, nir, swir1, green = cropToCommonShape(red, nir, swir1, green)

	var out IndexSet
	out.NDVI = normalizedDifference("NDVI", nir, red, true)
	out.NDMI = normalizedDifference("NDMI", nir, swir1, true)
	out.SAVI = savi(nir, red)
	out.NDWI = normalizedDifference("NDWI", green, nir, false)
	return out
}

// cropToCommonShape trims every non-empty grid to the minimum row and column
// count across all supplied grids, guaranteeing elementwise alignment.
func cropToCommonShape(grids ...BandGrid) (BandGrid, BandGrid, BandGrid, BandGrid) {
	rows, cols := math.MaxInt, math.MaxInt
	any := false
	for _, g := range grids {
		if g.Empty() {
			continue
		}
		any = true
		if g.Rows() < rows {
			rows = g.Rows()
		}
		if g.Cols() < cols {
			cols = g.Cols()
		}
	}
	if !any {
		return nil, nil, nil, nil
	}

	crop := func(g BandGrid) BandGrid {
		if g.Empty() {
			return nil
		}
		cropped := make(BandGrid, rows)
		for i := 0; i < rows; i++ {
			cropped[i] = g[i][:cols]
		}
		return cropped
	}
	return crop(grids[0]), crop(grids[1]), crop(grids[2]), crop(grids[3])
}

// normalizedDifference computes (a-b)/(a+b+epsilon) per pixel and aggregates.
// When clip is set the per-pixel ratio is clamped to [-1, 1] before
// aggregation; raw ratios can exceed the theoretical range under sensor noise.
func normalizedDifference(name string, a, b BandGrid, clip bool) IndexStats {
	if a.Empty() || b.Empty() {
		return noDataStats()
	}

	values := make([]float64, 0, a.Rows()*a.Cols())
	for i := range a {
		for j := range a[i] {
			av, bv := a[i][j], b[i][j]
			if !isValidPixel(av, bv) {
				continue
			}
			v := (av - bv) / (av + bv + epsilon)
			if clip {
				v = clamp(v, -1, 1)
			}
			values = append(values, v)
		}
	}
	return aggregate(name, values)
}

// savi computes the soil-adjusted vegetation index with L=0.5.
func savi(nir, red BandGrid) IndexStats {
	if nir.Empty() || red.Empty() {
		return noDataStats()
	}

	values := make([]float64, 0, nir.Rows()*nir.Cols())
	for i := range nir {
		for j := range nir[i] {
			nv, rv := nir[i][j], red[i][j]
			if !isValidPixel(nv, rv) {
				continue
			}
			denom := nv + rv + saviL
			if math.Abs(denom) <= epsilon {
				continue
			}
			values = append(values, (nv-rv)*(1+saviL)/denom)
		}
	}
	return aggregate("SAVI", values)
}

// isValidPixel rejects non-finite inputs and denominators below epsilon.
func isValidPixel(a, b float64) bool {
	if math.IsNaN(a) || math.IsInf(a, 0) || math.IsNaN(b) || math.IsInf(b, 0) {
		return false
	}
	return math.Abs(a+b) > epsilon
}

// aggregate computes mean and median over the valid pixels and attaches a
// qualitative status. Any NaN surviving the stats step is replaced with zero
// so the result stays serializable.
func aggregate(name string, values []float64) IndexStats {
	if len(values) == 0 {
		return noDataStats()
	}

	mean, err := stats.Mean(values)
	if err != nil || math.IsNaN(mean) {
		mean = 0
	}
	median, err := stats.Median(values)
	if err != nil || math.IsNaN(median) {
		median = 0
	}

	return IndexStats{
		Mean:   mean,
		Median: median,
		Count:  len(values),
		Status: qualitativeStatus(name, mean),
	}
}

func noDataStats() IndexStats {
	return IndexStats{Status: StatusNoData}
}

// SyntheticStats builds the IndexStats for a derived value with no underlying
// pixels, as produced by the village tier. Count carries the number of
// contributing survey records rather than a pixel count.
func SyntheticStats(name string, value float64, count int) IndexStats {
	return IndexStats{
		Mean:   value,
		Median: value,
		Count:  count,
		Status: qualitativeStatus(name, value),
	}
}

// qualitativeStatus maps an index mean onto a human-facing label using the
// fixed per-index thresholds.
func qualitativeStatus(name string, value float64) string {
	t, ok := indexThresholds[name]
	if !ok {
		return StatusNoData
	}
	switch {
	case value < t.low:
		return StatusNeedsAttention
	case value <= t.medium:
		return StatusModerate
	default:
		return StatusHealthy
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
