package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zumagro/soil-nutrient-service/internal/domain"
)

// Radar is the cloud-penetrating SatelliteProcessor. It derives pseudo
// vegetation indices from VV/VH backscatter and maps them through its own
// coefficient table; backscatter correlates with canopy structure more weakly
// than reflectance does, so the weights are damped toward the intercepts.
type Radar struct {
	cfg      Config
	catalog  domain.CatalogSearcher
	bands    domain.BandFetcher
	resolver *domain.CoefficientResolver
	pool     *FetchPool
	logger   *slog.Logger

	coefficients domain.CoefficientSet
}

func NewRadar(cfg Config, catalog domain.CatalogSearcher, bands domain.BandFetcher, resolver *domain.CoefficientResolver, pool *FetchPool, logger *slog.Logger) *Radar {
	return &Radar{
		cfg:          cfg,
		catalog:      catalog,
		bands:        bands,
		resolver:     resolver,
		pool:         pool,
		logger:       logger.With("source", cfg.Name),
		coefficients: radarCoefficients(),
	}
}

func (s *Radar) Name() string                { return s.cfg.Name }
func (s *Radar) Priority() int               { return s.cfg.Priority }
func (s *Radar) Timeout() time.Duration      { return s.cfg.Timeout }
func (s *Radar) CloudPenetrating() bool      { return s.cfg.CloudPenetrating }
func (s *Radar) ConfidenceBaseline() float64 { return s.cfg.ConfidenceBaseline }

func (s *Radar) Process(ctx context.Context, req domain.AnalysisRequest, bbox domain.BoundingBox) Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := domain.Now()

	// Radar sees through cloud; no cloud filter and no lookback extension
	// beyond one repeat cycle's worth of slack.
	q := domain.CatalogQuery{
		Collection: s.cfg.Collection,
		BBox:       bbox,
		Start:      req.StartDate.AddDate(0, 0, -30),
		End:        req.EndDate,
	}
	items, err := s.catalog.Search(ctx, q)
	if err != nil {
		return classifyErr(err, "catalog search")
	}
	item, ok := domain.SelectBestItem(items)
	if !ok {
		return failure(KindNoScene, fmt.Sprintf("no %s scene within window", s.cfg.Collection))
	}

	grids, res := s.fetchPolarizations(ctx, item, bbox)
	if !res.OK {
		return res
	}

	indices := domain.ComputeRadarIndices(grids["vv"], grids["vh"])
	if indices.NDVI.Count == 0 {
		return failure(KindNoValidPixels, fmt.Sprintf("scene %s: no valid backscatter over the request area", item.ID))
	}

	resolution := s.resolver.Resolve(req.Lat, req.Lon, req.Crop)
	resolution.Coefficients = s.coefficients
	nutrients := domain.EstimateNutrients(indices, resolution)

	meta := domain.ResultMetadata{
		Resolution:     s.cfg.Resolution,
		ProcessingTime: domain.Now().Sub(start).Seconds(),
		Region:         resolution.Region.String(),
		SceneID:        item.ID,
	}
	if !item.Acquired.IsZero() {
		acq := item.Acquired
		meta.AcquisitionDate = &acq
	}
	if resolution.Calibration != nil {
		meta.District = resolution.Calibration.District
	}

	return Result{
		OK:         true,
		Indices:    indices,
		Nutrients:  nutrients,
		Resolution: resolution,
		Metadata:   meta,
	}
}

func (s *Radar) fetchPolarizations(ctx context.Context, item domain.SatelliteItem, bbox domain.BoundingBox) (map[string]domain.BandGrid, Result) {
	grids := make(map[string]domain.BandGrid, 2)
	for _, role := range []string{"vv", "vh"} {
		uri, ok := item.Assets[s.cfg.Bands[role]]
		if !ok {
			return nil, failure(KindMissingBands, fmt.Sprintf("scene %s has no %s asset", item.ID, role))
		}
		var grid domain.BandGrid
		err := s.pool.Do(ctx, func() error {
			var ferr error
			grid, ferr = s.bands.FetchBand(ctx, uri, bbox)
			return ferr
		})
		if err != nil {
			return nil, classifyErr(fmt.Errorf("fetch %s polarization: %w", role, err), "band fetch")
		}
		if grid.Empty() {
			return nil, failure(KindNoValidPixels, fmt.Sprintf("scene %s: %s polarization does not cover the request area", item.ID, role))
		}
		grids[role] = grid
	}
	return grids, Result{OK: true}
}

// radarCoefficients is the radar tier's own index-to-nutrient table. The
// pseudo indices are already rescaled onto optical ranges, so the intercepts
// match the optical table while the slopes are cut to roughly half.
func radarCoefficients() domain.CoefficientSet {
	return domain.CoefficientSet{
		Nitrogen: domain.NutrientCoefficient{
			NDVIWeight: 200, NDMIWeight: 0, SAVIWeight: 0,
			Intercept: 220, Min: 120, Max: 560,
		},
		Phosphorus: domain.NutrientCoefficient{
			NDVIWeight: 15, NDMIWeight: 0, SAVIWeight: 0,
			Intercept: 16, Min: 8, Max: 45,
		},
		Potassium: domain.NutrientCoefficient{
			NDVIWeight: 75, NDMIWeight: 20, SAVIWeight: 0,
			Intercept: 95, Min: 60, Max: 280,
		},
		SOC: domain.NutrientCoefficient{
			NDVIWeight: 0.45, NDMIWeight: 0.1, SAVIWeight: 0,
			Intercept: 0.35, Min: 0.1, Max: 2.0,
		},
	}
}
