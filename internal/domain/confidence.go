package domain

// Tier-fixed confidence baselines. Satellite tiers start from their baseline
// and lose up to cloudPenalty as observed cloud cover approaches 100%. The
// village tier starts lower and can never exceed villageCeiling because it
// has no raw instrument data behind it.
const (
	cloudPenalty   = 0.15
	villageBase    = 0.70
	villageCeiling = 0.85

	// DefaultEstimateConfidence is attached when no survey village is in
	// range and the generic defaults are returned.
	DefaultEstimateConfidence = 0.30
)

// ScoreSatellite adjusts a tier baseline by the scene's cloud cover.
func ScoreSatellite(baseline, cloudCoverPct float64) float64 {
	if cloudCoverPct < 0 {
		cloudCoverPct = 0
	}
	if cloudCoverPct > 100 {
		cloudCoverPct = 100
	}
	return clamp(baseline-cloudPenalty*cloudCoverPct/100, 0, 1)
}

// ScoreVillage scores a village-lookup estimate from the number of
// contributing villages and their average distance. More and closer villages
// raise the score within the tier ceiling.
func ScoreVillage(villageCount int, avgDistanceKm float64) float64 {
	if villageCount <= 0 {
		return DefaultEstimateConfidence
	}
	contribution := 0.02 * float64(min(villageCount, 5))

	// Closeness bonus fades linearly to zero at 50 km.
	closeness := 0.0
	if avgDistanceKm < 50 {
		closeness = 0.05 * (1 - avgDistanceKm/50)
	}
	return clamp(villageBase+contribution+closeness, 0, villageCeiling)
}
