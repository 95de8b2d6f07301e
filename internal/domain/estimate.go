package domain

import "time"

// NutrientEstimate holds per-nutrient values for one field. Macro nutrients
// are kg/ha, SOC is percent, micronutrients are ppm. Values are always
// non-negative and clamped into the resolved coefficient ranges.
type NutrientEstimate struct {
	Nitrogen   float64 `json:"Nitrogen"`
	Phosphorus float64 `json:"Phosphorus"`
	Potassium  float64 `json:"Potassium"`
	SOC        float64 `json:"SOC"`

	// Micronutrients are populated by the village tier (survey data) and
	// omitted by satellite tiers that have no proxy for them.
	Boron  *float64 `json:"Boron,omitempty"`
	Iron   *float64 `json:"Iron,omitempty"`
	Zinc   *float64 `json:"Zinc,omitempty"`
	SoilPH *float64 `json:"Soil_pH,omitempty"`
}

// EstimateNutrients maps an index set to nutrient values using the resolved
// coefficients, applying the district calibration multipliers when present.
// Clamping happens after calibration so the multipliers cannot push a value
// outside the configured range.
func EstimateNutrients(idx IndexSet, res Resolution) NutrientEstimate {
	c := res.Coefficients

	n := idx.NDVI.Mean*c.Nitrogen.NDVIWeight + idx.NDMI.Mean*c.Nitrogen.NDMIWeight + idx.SAVI.Mean*c.Nitrogen.SAVIWeight + c.Nitrogen.Intercept
	p := idx.NDVI.Mean*c.Phosphorus.NDVIWeight + idx.NDMI.Mean*c.Phosphorus.NDMIWeight + idx.SAVI.Mean*c.Phosphorus.SAVIWeight + c.Phosphorus.Intercept
	k := idx.NDVI.Mean*c.Potassium.NDVIWeight + idx.NDMI.Mean*c.Potassium.NDMIWeight + idx.SAVI.Mean*c.Potassium.SAVIWeight + c.Potassium.Intercept
	soc := idx.NDVI.Mean*c.SOC.NDVIWeight + idx.NDMI.Mean*c.SOC.NDMIWeight + idx.SAVI.Mean*c.SOC.SAVIWeight + c.SOC.Intercept

	if cal := res.Calibration; cal != nil {
		n *= cal.Nitrogen
		p *= cal.Phosphorus
		k *= cal.Potassium
		soc *= cal.SOC
	}

	return NutrientEstimate{
		Nitrogen:   clamp(n, c.Nitrogen.Min, c.Nitrogen.Max),
		Phosphorus: clamp(p, c.Phosphorus.Min, c.Phosphorus.Max),
		Potassium:  clamp(k, c.Potassium.Min, c.Potassium.Max),
		SOC:        clamp(soc, c.SOC.Min, c.SOC.Max),
	}
}

// ResultMetadata describes the provenance of a fallback result.
type ResultMetadata struct {
	Resolution      string     `json:"resolution"`
	CloudCover      *float64   `json:"cloudCover"`
	AcquisitionDate *time.Time `json:"acquisitionDate"`
	ProcessingTime  float64    `json:"processingTime"` // seconds
	Region          string     `json:"region,omitempty"`
	District        string     `json:"district,omitempty"`
	SceneID         string     `json:"sceneId,omitempty"`
}

// FallbackResult is the record returned to callers: which tier answered,
// with what indices and nutrients, and how much to trust it.
type FallbackResult struct {
	Success    bool   `json:"success"`
	RequestID  string `json:"requestId,omitempty"`
	FieldID    string `json:"fieldId"`
	Source     string `json:"source"` // satellite collection id or "village-lookup"
	Tier       int    `json:"tier"`   // 0-based position in the fallback chain
	Cached     bool   `json:"cached"`
	Synthetic  bool   `json:"syntheticIndices,omitempty"` // village tier: indices derived, not observed
	CropType   string `json:"cropType"`

	Indices    IndexSet         `json:"indices"`
	Nutrients  NutrientEstimate `json:"npk"`
	Confidence float64          `json:"confidenceScore"`
	Metadata   ResultMetadata   `json:"metadata"`

	ProcessedAt time.Time `json:"processedAt"`
}

// FailureResult is the rare terminal failure shape, produced only when even
// the village tier cannot answer (empty survey dataset).
type FailureResult struct {
	Success   bool   `json:"success"`
	RequestID string `json:"requestId,omitempty"`
	FieldID   string `json:"fieldId"`
	Error     string `json:"error"`
}
