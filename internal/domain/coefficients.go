package domain

// Region is one of India's macro-regions used to select a coefficient table.
// Coordinates outside every regional box resolve to RegionGlobal.
type Region int

const (
	RegionGlobal Region = iota
	RegionNorth
	RegionCentral
	RegionSouth
	RegionEast
	RegionWest
)

var regionNames = map[Region]string{
	RegionGlobal:  "global",
	RegionNorth:   "north_india",
	RegionCentral: "central_india",
	RegionSouth:   "south_india",
	RegionEast:    "east_india",
	RegionWest:    "west_india",
}

func (r Region) String() string { return regionNames[r] }

// regionBox pairs a region with its coverage rectangle. Checked in order;
// first hit wins, so the more specific central box precedes the broad ones.
type regionBox struct {
	region         Region
	minLat, maxLat float64
	minLon, maxLon float64
}

var regionBoxes = []regionBox{
	{RegionCentral, 18.0, 26.0, 74.0, 84.0},
	{RegionNorth, 26.0, 37.6, 72.0, 89.0},
	{RegionSouth, 8.4, 18.0, 74.0, 84.5},
	{RegionEast, 18.0, 28.0, 84.0, 97.25},
	{RegionWest, 18.0, 26.0, 68.7, 74.0},
}

// ClassifyRegion maps a coordinate onto a macro-region, or RegionGlobal when
// the point lies outside every regional box.
func ClassifyRegion(lat, lon float64) Region {
	for _, b := range regionBoxes {
		if lat >= b.minLat && lat < b.maxLat && lon >= b.minLon && lon < b.maxLon {
			return b.region
		}
	}
	return RegionGlobal
}

// Crop is the closed set of supported crop types. Unknown strings parse to
// CropGeneric rather than failing; unresolvable inputs are a configuration
// concern, not a runtime error.
type Crop int

const (
	CropGeneric Crop = iota
	CropRice
	CropWheat
	CropCotton
)

var cropNames = map[Crop]string{
	CropGeneric: "generic",
	CropRice:    "rice",
	CropWheat:   "wheat",
	CropCotton:  "cotton",
}

func (c Crop) String() string { return cropNames[c] }

// ParseCrop normalizes a caller-supplied crop string. Matching is
// case-insensitive; anything unrecognized becomes CropGeneric.
func ParseCrop(s string) Crop {
	switch normalizeLower(s) {
	case "rice", "paddy":
		return CropRice
	case "wheat":
		return CropWheat
	case "cotton":
		return CropCotton
	default:
		return CropGeneric
	}
}

func normalizeLower(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c == ' ' || c == '\t' {
			continue
		}
		b = append(b, c)
	}
	return string(b)
}

// NutrientCoefficient is one linear index-to-nutrient mapping with its valid
// output range. estimate = NDVI·NDVIWeight + NDMI·NDMIWeight + SAVI·SAVIWeight
// + Intercept, clamped into [Min, Max].
type NutrientCoefficient struct {
	NDVIWeight float64
	NDMIWeight float64
	SAVIWeight float64
	Intercept  float64
	Min        float64
	Max        float64
}

// Apply evaluates the linear form against an index set and clamps the result.
func (c NutrientCoefficient) Apply(idx IndexSet) float64 {
	v := idx.NDVI.Mean*c.NDVIWeight + idx.NDMI.Mean*c.NDMIWeight + idx.SAVI.Mean*c.SAVIWeight + c.Intercept
	return clamp(v, c.Min, c.Max)
}

// CoefficientSet holds the per-nutrient coefficients for one (region, crop)
// pair. Nitrogen/phosphorus/potassium are kg/ha, SOC is percent.
type CoefficientSet struct {
	Nitrogen   NutrientCoefficient
	Phosphorus NutrientCoefficient
	Potassium  NutrientCoefficient
	SOC        NutrientCoefficient
}

// DistrictCalibration is an opaque per-district multiplier layer applied on
// top of the regional coefficients. Values come from lab validation and are
// deployment configuration, not learned parameters.
type DistrictCalibration struct {
	District   string  `yaml:"district"`
	MinLat     float64 `yaml:"min_lat"`
	MaxLat     float64 `yaml:"max_lat"`
	MinLon     float64 `yaml:"min_lon"`
	MaxLon     float64 `yaml:"max_lon"`
	Nitrogen   float64 `yaml:"nitrogen_multiplier"`
	Phosphorus float64 `yaml:"phosphorus_multiplier"`
	Potassium  float64 `yaml:"potassium_multiplier"`
	SOC        float64 `yaml:"soc_multiplier"`
}

// contains reports whether a coordinate falls inside the district bounds.
func (d DistrictCalibration) contains(lat, lon float64) bool {
	return lat >= d.MinLat && lat <= d.MaxLat && lon >= d.MinLon && lon <= d.MaxLon
}

// Resolution bundles everything a satellite processor needs to both estimate
// nutrients and report provenance.
type Resolution struct {
	Region       Region
	Crop         Crop
	Coefficients CoefficientSet
	Calibration  *DistrictCalibration // nil outside any calibrated district
}

// CoefficientResolver resolves (lat, lon, crop) to a coefficient set.
// The tables are built once at construction and read-only thereafter.
type CoefficientResolver struct {
	table     map[regionCrop]CoefficientSet
	districts []DistrictCalibration
}

type regionCrop struct {
	region Region
	crop   Crop
}

// NewCoefficientResolver builds the resolver with the base coefficient table
// and the given district calibration layer.
func NewCoefficientResolver(districts []DistrictCalibration) *CoefficientResolver {
	return &CoefficientResolver{
		table:     buildCoefficientTable(),
		districts: districts,
	}
}

// Resolve never fails: missing (region, crop) entries fall back to the
// region's generic entry, then to the global generic entry.
func (r *CoefficientResolver) Resolve(lat, lon float64, crop Crop) Resolution {
	region := ClassifyRegion(lat, lon)

	set, ok := r.table[regionCrop{region, crop}]
	if !ok {
		set, ok = r.table[regionCrop{region, CropGeneric}]
	}
	if !ok {
		set = r.table[regionCrop{RegionGlobal, CropGeneric}]
	}

	res := Resolution{Region: region, Crop: crop, Coefficients: set}
	for i := range r.districts {
		if r.districts[i].contains(lat, lon) {
			res.Calibration = &r.districts[i]
			break
		}
	}
	return res
}

// buildCoefficientTable assembles the base (region, crop) coefficient table.
// Weights are tuned so a typical cropland NDVI near 0.55 lands in the middle
// of the ICAR soil-health-card ranges for each nutrient.
func buildCoefficientTable() map[regionCrop]CoefficientSet {
	base := CoefficientSet{
		Nitrogen:   NutrientCoefficient{NDVIWeight: 400, Intercept: 180, Min: 120, Max: 560},
		Phosphorus: NutrientCoefficient{NDVIWeight: 30, Intercept: 12, Min: 8, Max: 45},
		Potassium:  NutrientCoefficient{NDVIWeight: 150, NDMIWeight: 40, Intercept: 70, Min: 60, Max: 280},
		SOC:        NutrientCoefficient{NDVIWeight: 0.9, NDMIWeight: 0.2, Intercept: 0.25, Min: 0.1, Max: 2.0},
	}

	table := map[regionCrop]CoefficientSet{
		{RegionGlobal, CropGeneric}: base,
	}

	// Regional generic entries: shift the intercepts toward each region's
	// typical soil profile (alluvial north, black-soil central, red south).
	north := base
	north.Nitrogen.Intercept = 200
	north.Potassium.Intercept = 85
	north.SOC.Intercept = 0.35
	table[regionCrop{RegionNorth, CropGeneric}] = north

	central := base
	central.Nitrogen.Intercept = 190
	central.Phosphorus.Intercept = 10
	central.SOC.Intercept = 0.30
	table[regionCrop{RegionCentral, CropGeneric}] = central

	south := base
	south.Nitrogen.Intercept = 165
	south.Potassium.Intercept = 65
	table[regionCrop{RegionSouth, CropGeneric}] = south

	east := base
	east.Nitrogen.Intercept = 185
	east.SOC.Intercept = 0.40
	table[regionCrop{RegionEast, CropGeneric}] = east

	west := base
	west.Nitrogen.Intercept = 170
	west.Phosphorus.Intercept = 11
	table[regionCrop{RegionWest, CropGeneric}] = west

	// Per-crop entries scale the regional generics by the crop multipliers.
	cropScale := map[Crop][4]float64{
		// nitrogen, phosphorus, potassium, soc
		CropRice:   {1.0, 1.0, 1.0, 1.0},
		CropWheat:  {0.9, 1.1, 0.8, 1.0},
		CropCotton: {0.8, 0.9, 1.2, 0.9},
	}
	// Scale from a fixed list of generic regions, never from the map being
	// filled, so each crop entry is derived from its generic exactly once.
	regions := []Region{RegionGlobal, RegionNorth, RegionCentral, RegionSouth, RegionEast, RegionWest}
	for _, region := range regions {
		set := table[regionCrop{region, CropGeneric}]
		for crop, s := range cropScale {
			scaled := set
			scaled.Nitrogen = scaleCoefficient(set.Nitrogen, s[0])
			scaled.Phosphorus = scaleCoefficient(set.Phosphorus, s[1])
			scaled.Potassium = scaleCoefficient(set.Potassium, s[2])
			scaled.SOC = scaleCoefficient(set.SOC, s[3])
			table[regionCrop{region, crop}] = scaled
		}
	}
	return table
}

func scaleCoefficient(c NutrientCoefficient, s float64) NutrientCoefficient {
	c.NDVIWeight *= s
	c.NDMIWeight *= s
	c.SAVIWeight *= s
	c.Intercept *= s
	c.Min *= s
	c.Max *= s
	return c
}
