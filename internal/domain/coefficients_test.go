package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kankerCalibration() DistrictCalibration {
	return DistrictCalibration{
		District:   "kanker",
		MinLat:     20.16,
		MaxLat:     20.33,
		MinLon:     81.15,
		MaxLon:     81.49,
		Nitrogen:   3.0,
		Phosphorus: 1.53,
		Potassium:  1.22,
		SOC:        1.79,
	}
}

func TestClassifyRegion(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     Region
	}{
		{"delhi is north", 28.61, 77.21, RegionNorth},
		{"kanker is central", 20.27, 81.30, RegionCentral},
		{"bengaluru is south", 12.97, 77.59, RegionSouth},
		{"kolkata is east", 22.57, 88.36, RegionEast},
		{"rajkot is west", 22.30, 70.80, RegionWest},
		{"atlantic is global", 0.0, -30.0, RegionGlobal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRegion(tt.lat, tt.lon))
		})
	}
}

func TestParseCrop(t *testing.T) {
	assert.Equal(t, CropRice, ParseCrop("RICE"))
	assert.Equal(t, CropRice, ParseCrop("Paddy"))
	assert.Equal(t, CropWheat, ParseCrop("wheat"))
	assert.Equal(t, CropCotton, ParseCrop("Cotton"))
	assert.Equal(t, CropGeneric, ParseCrop("sugarcane"))
	assert.Equal(t, CropGeneric, ParseCrop(""))
}

func TestResolve_ExactAndFallback(t *testing.T) {
	r := NewCoefficientResolver(nil)

	// Exact (region, crop) entry.
	res := r.Resolve(28.61, 77.21, CropRice)
	assert.Equal(t, RegionNorth, res.Region)
	assert.Nil(t, res.Calibration)

	// Unknown crop falls back to the regional generic entry, never errors.
	generic := r.Resolve(28.61, 77.21, CropGeneric)
	assert.Equal(t, RegionNorth, generic.Region)
	assert.NotZero(t, generic.Coefficients.Nitrogen.Intercept)

	// Outside India falls back to the global generic entry.
	global := r.Resolve(0.0, -30.0, CropRice)
	assert.Equal(t, RegionGlobal, global.Region)
	assert.NotZero(t, global.Coefficients.Nitrogen.Intercept)
}

func TestBuildCoefficientTable_Deterministic(t *testing.T) {
	// Crop entries must be scaled from their regional generic exactly once,
	// regardless of map iteration order during construction.
	want := buildCoefficientTable()
	for i := 0; i < 2000; i++ {
		got := buildCoefficientTable()
		require.Equal(t, want, got, "rebuild %d diverged", i)
	}

	wheat := want[regionCrop{RegionNorth, CropWheat}]
	assert.InDelta(t, 200*0.9, wheat.Nitrogen.Intercept, 1e-9)
	assert.InDelta(t, 120*0.9, wheat.Nitrogen.Min, 1e-9)
	assert.InDelta(t, 560*0.9, wheat.Nitrogen.Max, 1e-9)
}

func TestResolve_DistrictCalibration(t *testing.T) {
	r := NewCoefficientResolver([]DistrictCalibration{kankerCalibration()})

	inside := r.Resolve(20.27, 81.30, CropRice)
	require.NotNil(t, inside.Calibration)
	assert.Equal(t, "kanker", inside.Calibration.District)
	assert.Equal(t, 3.0, inside.Calibration.Nitrogen)

	outside := r.Resolve(21.00, 81.30, CropRice)
	assert.Nil(t, outside.Calibration)
}

func TestEstimateNutrients_Clamping(t *testing.T) {
	r := NewCoefficientResolver(nil)
	res := r.Resolve(28.61, 77.21, CropRice)

	// A saturated NDVI must not push nitrogen past its configured maximum.
	idx := IndexSet{NDVI: IndexStats{Mean: 0.99, Count: 100, Status: StatusHealthy}}
	est := EstimateNutrients(idx, res)

	assert.LessOrEqual(t, est.Nitrogen, res.Coefficients.Nitrogen.Max)
	assert.GreaterOrEqual(t, est.Nitrogen, res.Coefficients.Nitrogen.Min)
	assert.GreaterOrEqual(t, est.Phosphorus, 0.0)
	assert.GreaterOrEqual(t, est.Potassium, 0.0)
	assert.GreaterOrEqual(t, est.SOC, 0.0)
}

func TestEstimateNutrients_ClampAfterCalibration(t *testing.T) {
	r := NewCoefficientResolver([]DistrictCalibration{kankerCalibration()})
	res := r.Resolve(20.27, 81.30, CropRice)
	require.NotNil(t, res.Calibration)

	// The 3.0 nitrogen multiplier would triple a mid-range value; the final
	// estimate still has to land inside the coefficient range.
	idx := IndexSet{
		NDVI: IndexStats{Mean: 0.55, Count: 100},
		NDMI: IndexStats{Mean: 0.30, Count: 100},
	}
	est := EstimateNutrients(idx, res)

	assert.LessOrEqual(t, est.Nitrogen, res.Coefficients.Nitrogen.Max)
	assert.LessOrEqual(t, est.SOC, res.Coefficients.SOC.Max)
}

func TestEstimateNutrients_LowVigourFloor(t *testing.T) {
	r := NewCoefficientResolver(nil)
	res := r.Resolve(28.61, 77.21, CropWheat)

	idx := IndexSet{NDVI: IndexStats{Mean: -1.0, Count: 10}}
	est := EstimateNutrients(idx, res)

	assert.Equal(t, res.Coefficients.Nitrogen.Min, est.Nitrogen)
	assert.GreaterOrEqual(t, est.Nitrogen, 0.0)
}
