// Package source implements the per-satellite processors of the fallback
// chain. Each processor turns a bounding box plus analysis request into a
// normalized result record; the orchestrator owns ordering and retries.
package source

import (
	"context"
	"time"

	"github.com/zumagro/soil-nutrient-service/internal/domain"
)

// ErrorKind classifies a failed processing attempt. Timeouts are the only
// retryable kind; everything else is a definitive outcome for this source.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindNoScene       ErrorKind = "no_scene_found"
	KindMissingBands  ErrorKind = "missing_bands"
	KindNoValidPixels ErrorKind = "no_valid_pixels"
	KindTimeout       ErrorKind = "timeout"
	KindUnavailable   ErrorKind = "circuit_open"
	KindInternal      ErrorKind = "internal"
)

// Result is the outcome of one source attempt. Failed attempts carry a kind
// and message instead of raising; the orchestrator decides what happens next.
type Result struct {
	OK      bool
	Kind    ErrorKind
	Message string

	Indices    domain.IndexSet
	Nutrients  domain.NutrientEstimate
	Resolution domain.Resolution
	Metadata   domain.ResultMetadata
}

// Retryable reports whether the orchestrator may retry this source.
func (r Result) Retryable() bool {
	return !r.OK && r.Kind == KindTimeout
}

func failure(kind ErrorKind, msg string) Result {
	return Result{Kind: kind, Message: msg}
}

// Source is one satellite tier of the fallback chain.
type Source interface {
	// Name identifies the tier in result provenance and metrics labels.
	Name() string
	// Priority orders the default fallback chain; lower tries first.
	Priority() int
	// Timeout bounds one processing attempt.
	Timeout() time.Duration
	// CloudPenetrating is true for radar tiers that see through cloud.
	CloudPenetrating() bool
	// ConfidenceBaseline is the tier-fixed confidence before adjustments.
	ConfidenceBaseline() float64
	// Process runs catalog search, band fetch, and index-to-nutrient
	// estimation for the request area. It never returns an error; failures
	// are folded into the result record.
	Process(ctx context.Context, req domain.AnalysisRequest, bbox domain.BoundingBox) Result
}

// Config describes one satellite collection of the chain.
type Config struct {
	Name               string
	Collection         string
	Resolution         string
	Timeout            time.Duration
	Priority           int
	CloudPenetrating   bool
	ConfidenceBaseline float64

	// Bands maps band roles (red, nir, swir1, green, vv, vh) to the asset
	// keys used by the collection's catalog entries.
	Bands map[string]string
}

// DefaultConfigs is the production satellite table: two optical detail tiers,
// one coarse optical tier, and a radar tier for monsoon coverage.
func DefaultConfigs() []Config {
	return []Config{
		{
			Name:               "sentinel2-l2a",
			Collection:         "sentinel-2-l2a",
			Resolution:         "10m",
			Timeout:            15 * time.Second,
			Priority:           1,
			ConfidenceBaseline: 0.95,
			Bands: map[string]string{
				"red":   "B04",
				"nir":   "B08",
				"swir1": "B11",
				"green": "B03",
			},
		},
		{
			Name:               "landsat8-c2l2",
			Collection:         "landsat-c2-l2",
			Resolution:         "30m",
			Timeout:            20 * time.Second,
			Priority:           2,
			ConfidenceBaseline: 0.90,
			Bands: map[string]string{
				"red":   "SR_B4",
				"nir":   "SR_B5",
				"swir1": "SR_B6",
				"green": "SR_B3",
			},
		},
		{
			Name:               "modis-09a1",
			Collection:         "modis-09A1-061",
			Resolution:         "250m",
			Timeout:            25 * time.Second,
			Priority:           3,
			ConfidenceBaseline: 0.80,
			Bands: map[string]string{
				"red":   "sur_refl_b01",
				"nir":   "sur_refl_b02",
				"swir1": "sur_refl_b06",
				"green": "sur_refl_b04",
			},
		},
		{
			Name:               "sentinel1-rtc",
			Collection:         "sentinel-1-rtc",
			Resolution:         "10m",
			Timeout:            30 * time.Second,
			Priority:           4,
			CloudPenetrating:   true,
			ConfidenceBaseline: 0.80,
			Bands: map[string]string{
				"vv": "vv",
				"vh": "vh",
			},
		},
	}
}
