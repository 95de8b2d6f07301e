// Package domain models satellite-derived soil nutrient estimation for
// Indian agricultural fields.
//
// # Data Sources
//
// Spectral scenes come from an imagery catalog (STAC-style search over
// Sentinel-2 L2A, Landsat-8 C2 L2, MODIS 09A1, and Sentinel-1 RTC
// collections). Ground-truth survey values come from ICAR soil health card
// datasets collected at village level; district calibration multipliers were
// validated against KVK mini soil testing lab results.
//
// # Vegetation Indices
//
// All optical indices are normalized band ratios with an epsilon-guarded
// denominator:
//
//	NDVI = (NIR - Red)   / (NIR + Red + ε)       vegetation vigour
//	NDMI = (NIR - SWIR1) / (NIR + SWIR1 + ε)     canopy moisture
//	SAVI = (NIR - Red)(1+L) / (NIR + Red + L)    L = 0.5, sparse canopy
//	NDWI = (Green - NIR) / (Green + NIR + ε)     surface water
//
// NDVI and NDMI are clipped to [-1, 1] after computation since raw ratios can
// exceed the theoretical range under sensor noise. Mean and median are taken
// over valid pixels only (denominator magnitude > ε); a fully invalid tile
// produces explicit zeros with a "no_data" status rather than NaN so every
// result stays JSON-serializable.
//
// Qualitative status thresholds (low / medium boundaries):
//
//	NDVI  0.30 / 0.55
//	NDMI  0.15 / 0.40
//	SAVI  0.20 / 0.50
//	NDWI  0.00 / 0.20
//
// The Sentinel-1 tier has no optical bands; it derives a radar vegetation
// index and cross-polarization ratio from VV/VH backscatter and rescales them
// onto the optical index ranges. See [ComputeRadarIndices].
//
// # Nutrient Mapping
//
// Indices map to nutrient values through linear coefficients keyed by
// (macro-region, crop). Regions are fixed bounding boxes covering India's
// macro-regions; coordinates outside all of them resolve to a global default.
// Unknown crops resolve to a generic entry; resolution never fails at
// runtime. Estimates are clamped into each coefficient's [min, max] range
// after the district calibration multipliers are applied, so an out-of-range
// index can never produce an out-of-range nutrient value.
//
// # Cropping Seasons
//
// Catalog searches use a season-aware cloud ceiling: kharif (Jun-Oct) 50%,
// zaid (May) 40%, rabi (Nov-Apr) 30%. During the monsoon the optical tiers
// are demoted in favour of the cloud-penetrating radar tier.
package domain
