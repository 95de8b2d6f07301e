package village

import (
	"log/slog"
	"sort"

	"github.com/zumagro/soil-nutrient-service/internal/domain"
)

// Regional defaults applied when no surveyed village is close enough. Values
// sit at the midpoint of the ICAR soil-health-card "medium" class.
const (
	defaultNitrogen   = 400.0 // kg/ha
	defaultPhosphorus = 30.0  // kg/ha
	defaultPotassium  = 165.0 // kg/ha
	defaultSOC        = 0.75  // percent
	defaultBoron      = 1.0   // ppm
	defaultIron       = 7.0   // ppm
	defaultZinc       = 1.5   // ppm
	defaultSoilPH     = 6.5
)

// distanceFloorKm keeps inverse-distance weights finite for a field sitting
// on top of a surveyed village.
const distanceFloorKm = 0.1

// Estimate is the outcome of a village lookup. It always exists; zero
// contributing villages means the regional defaults were used.
type Estimate struct {
	Nutrients  domain.NutrientEstimate
	Indices    domain.IndexSet
	Confidence float64

	VillageCount  int
	AvgDistanceKm float64
	Nearest       string
}

// Estimator answers from the static survey dataset alone.
type Estimator struct {
	records       []Record
	maxDistanceKm float64
	topN          int
	logger        *slog.Logger
}

func NewEstimator(records []Record, maxDistanceKm float64, topN int, logger *slog.Logger) *Estimator {
	if maxDistanceKm <= 0 {
		maxDistanceKm = 50
	}
	if topN < 1 {
		topN = 5
	}
	return &Estimator{
		records:       records,
		maxDistanceKm: maxDistanceKm,
		topN:          topN,
		logger:        logger,
	}
}

// Empty reports whether the dataset holds no records at all, the only
// condition under which the fallback chain can terminally fail.
func (e *Estimator) Empty() bool { return len(e.records) == 0 }

// Estimate computes an inverse-distance-weighted nutrient estimate from the
// nearest surveyed villages. It cannot fail: with no village in range it
// falls back to regional defaults at the floor confidence.
func (e *Estimator) Estimate(lat, lon float64) Estimate {
	neighbors := e.nearest(lat, lon)
	if len(neighbors) == 0 {
		e.logger.Warn("no surveyed village within range, using regional defaults",
			"lat", lat, "lon", lon, "max_distance_km", e.maxDistanceKm)
		nutrients := defaultNutrients()
		return Estimate{
			Nutrients:  nutrients,
			Indices:    syntheticIndices(nutrients, 0),
			Confidence: domain.ScoreVillage(0, 0),
		}
	}

	weights := make([]float64, len(neighbors))
	var weightSum, distSum float64
	for i, n := range neighbors {
		d := n.distanceKm
		if d < distanceFloorKm {
			d = distanceFloorKm
		}
		weights[i] = 1 / d
		weightSum += weights[i]
		distSum += n.distanceKm
	}
	for i := range weights {
		weights[i] /= weightSum
	}

	var nutrients domain.NutrientEstimate
	for i, n := range neighbors {
		w := weights[i]
		nutrients.Nitrogen += w * n.record.Nitrogen
		nutrients.Phosphorus += w * n.record.Phosphorus
		nutrients.Potassium += w * n.record.Potassium
		nutrients.SOC += w * n.record.SOC
	}
	nutrients.Boron = weightedOptional(neighbors, weights, func(r Record) *float64 { return r.Boron }, defaultBoron)
	nutrients.Iron = weightedOptional(neighbors, weights, func(r Record) *float64 { return r.Iron }, defaultIron)
	nutrients.Zinc = weightedOptional(neighbors, weights, func(r Record) *float64 { return r.Zinc }, defaultZinc)
	nutrients.SoilPH = weightedOptional(neighbors, weights, func(r Record) *float64 { return r.SoilPH }, defaultSoilPH)

	avgDist := distSum / float64(len(neighbors))
	return Estimate{
		Nutrients:     nutrients,
		Indices:       syntheticIndices(nutrients, len(neighbors)),
		Confidence:    domain.ScoreVillage(len(neighbors), avgDist),
		VillageCount:  len(neighbors),
		AvgDistanceKm: avgDist,
		Nearest:       neighbors[0].record.Name,
	}
}

type neighbor struct {
	record     Record
	distanceKm float64
}

// nearest returns the closest in-range villages, nearest first, capped at the
// configured top-N.
func (e *Estimator) nearest(lat, lon float64) []neighbor {
	var in []neighbor
	for _, r := range e.records {
		d := domain.Haversine(lat, lon, r.Lat, r.Lon)
		if d <= e.maxDistanceKm {
			in = append(in, neighbor{record: r, distanceKm: d})
		}
	}
	sort.Slice(in, func(i, j int) bool { return in[i].distanceKm < in[j].distanceKm })
	if len(in) > e.topN {
		in = in[:e.topN]
	}
	return in
}

// weightedOptional averages an optional field over the records that report
// it, renormalizing the weights; the default fills in when no record does.
func weightedOptional(neighbors []neighbor, weights []float64, get func(Record) *float64, def float64) *float64 {
	var sum, weightSum float64
	for i, n := range neighbors {
		if v := get(n.record); v != nil {
			sum += weights[i] * *v
			weightSum += weights[i]
		}
	}
	out := def
	if weightSum > 0 {
		out = sum / weightSum
	}
	return &out
}

// syntheticIndices inverts the global generic nitrogen/SOC mappings to give
// downstream consumers a plausible IndexSet. These are derived values with no
// observed pixels behind them; results carry a synthetic flag accordingly.
func syntheticIndices(n domain.NutrientEstimate, count int) domain.IndexSet {
	ndvi := clampUnit((n.Nitrogen - 180) / 400)
	ndmi := clampUnit((n.SOC - 0.25) / 1.8)
	savi := clampUnit(ndvi * 0.85)
	ndwi := clampUnit(ndvi*0.3 - 0.05)

	return domain.IndexSet{
		NDVI: domain.SyntheticStats("NDVI", ndvi, count),
		NDMI: domain.SyntheticStats("NDMI", ndmi, count),
		SAVI: domain.SyntheticStats("SAVI", savi, count),
		NDWI: domain.SyntheticStats("NDWI", ndwi, count),
	}
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func defaultNutrients() domain.NutrientEstimate {
	b, fe, zn, ph := defaultBoron, defaultIron, defaultZinc, defaultSoilPH
	return domain.NutrientEstimate{
		Nitrogen:   defaultNitrogen,
		Phosphorus: defaultPhosphorus,
		Potassium:  defaultPotassium,
		SOC:        defaultSOC,
		Boron:      &b,
		Iron:       &fe,
		Zinc:       &zn,
		SoilPH:     &ph,
	}
}
