package domain

import "math"

// Radar backscatter has no red/NIR bands, so the SAR tier derives its own
// indicators from the VV and VH polarizations:
//
//	cross-polarization ratio = VH / VV        (canopy scattering proxy)
//	radar vegetation index   = 4·VH/(VV+VH)   (0 bare soil .. ~1 dense canopy)
//
// Both are rescaled onto the optical index ranges so downstream consumers see
// the familiar IndexSet shape. The rescaling is a fixed linear map, not a
// physical equivalence.

// ComputeRadarIndices derives an IndexSet from VV/VH backscatter grids.
// VV and VH are required; an empty grid yields no_data across the set.
func ComputeRadarIndices(vv, vh BandGrid) IndexSet {
	vv, vh, _, _ = cropToCommonShape(vv, vh, nil, nil)
	if vv.Empty() || vh.Empty() {
		return IndexSet{
			NDVI: noDataStats(),
			NDMI: noDataStats(),
			SAVI: noDataStats(),
			NDWI: noDataStats(),
		}
	}

	rvi := make([]float64, 0, vv.Rows()*vv.Cols())
	cross := make([]float64, 0, vv.Rows()*vv.Cols())
	for i := range vv {
		for j := range vv[i] {
			vvv, vhv := vv[i][j], vh[i][j]
			if math.IsNaN(vvv) || math.IsNaN(vhv) || vvv <= 0 || vhv < 0 {
				continue
			}
			denom := vvv + vhv
			if denom <= epsilon {
				continue
			}
			rvi = append(rvi, clamp(4*vhv/denom, 0, 2))
			cross = append(cross, vhv/vvv)
		}
	}

	// RVI ~0.6 corresponds to moderate canopy; the 0.8 scale puts a dense
	// canopy near the NDVI "healthy" band.
	ndviLike := rescale(rvi, 0.8, -0.1)
	ndmiLike := rescale(cross, 1.0, -0.2)

	var out IndexSet
	out.NDVI = aggregate("NDVI", ndviLike)
	out.NDMI = aggregate("NDMI", ndmiLike)
	out.SAVI = aggregate("SAVI", rescale(rvi, 0.7, -0.05))
	out.NDWI = aggregate("NDWI", rescale(cross, 0.6, -0.3))
	return out
}

// rescale applies v*scale+offset and clamps into [-1, 1].
func rescale(values []float64, scale, offset float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = clamp(v*scale+offset, -1, 1)
	}
	return out
}
