package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zumagro/soil-nutrient-service/internal/domain"
	"github.com/zumagro/soil-nutrient-service/internal/resilience"
)

// lookbackExtensionsDays are the progressively wider search windows tried
// when the requested range yields no scene. Sparse revisit areas often need a
// season or two of history before anything usable appears.
var lookbackExtensionsDays = []int{0, 180, 365, 730}

// Optical is a SatelliteProcessor for optical collections: catalog search,
// parallel band fetch, index computation, coefficient-based estimation.
type Optical struct {
	cfg      Config
	catalog  domain.CatalogSearcher
	bands    domain.BandFetcher
	resolver *domain.CoefficientResolver
	pool     *FetchPool
	logger   *slog.Logger
}

func NewOptical(cfg Config, catalog domain.CatalogSearcher, bands domain.BandFetcher, resolver *domain.CoefficientResolver, pool *FetchPool, logger *slog.Logger) *Optical {
	return &Optical{
		cfg:      cfg,
		catalog:  catalog,
		bands:    bands,
		resolver: resolver,
		pool:     pool,
		logger:   logger.With("source", cfg.Name),
	}
}

func (s *Optical) Name() string                { return s.cfg.Name }
func (s *Optical) Priority() int               { return s.cfg.Priority }
func (s *Optical) Timeout() time.Duration      { return s.cfg.Timeout }
func (s *Optical) CloudPenetrating() bool      { return s.cfg.CloudPenetrating }
func (s *Optical) ConfidenceBaseline() float64 { return s.cfg.ConfidenceBaseline }

func (s *Optical) Process(ctx context.Context, req domain.AnalysisRequest, bbox domain.BoundingBox) Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := domain.Now()

	item, res := s.findScene(ctx, req, bbox)
	if !res.OK {
		return res
	}

	grids, res := s.fetchBands(ctx, item, bbox, []string{"red", "nir", "swir1", "green"}, []string{"red", "nir"})
	if !res.OK {
		return res
	}

	indices := domain.ComputeIndices(grids["red"], grids["nir"], grids["swir1"], grids["green"])
	if indices.NDVI.Count == 0 {
		return failure(KindNoValidPixels, fmt.Sprintf("scene %s: no valid pixels over the request area", item.ID))
	}

	resolution := s.resolver.Resolve(req.Lat, req.Lon, req.Crop)
	nutrients := domain.EstimateNutrients(indices, resolution)

	return s.success(item, indices, nutrients, resolution, start)
}

// findScene searches the catalog, widening the lookback window until a scene
// appears. An exhausted search is a definitive no-scene outcome, not an error.
func (s *Optical) findScene(ctx context.Context, req domain.AnalysisRequest, bbox domain.BoundingBox) (domain.SatelliteItem, Result) {
	ceiling := s.cloudCeiling(req)

	for _, ext := range lookbackExtensionsDays {
		q := domain.CatalogQuery{
			Collection:    s.cfg.Collection,
			BBox:          bbox,
			Start:         req.StartDate.AddDate(0, 0, -ext),
			End:           req.EndDate,
			MaxCloudCover: ceiling,
		}

		items, err := s.catalog.Search(ctx, q)
		if err != nil {
			return domain.SatelliteItem{}, classifyErr(err, "catalog search")
		}
		if item, ok := domain.SelectBestItem(items); ok {
			if ext > 0 {
				s.logger.Debug("scene found after lookback extension", "scene", item.ID, "extension_days", ext)
			}
			return item, Result{OK: true}
		}
	}

	return domain.SatelliteItem{}, failure(KindNoScene,
		fmt.Sprintf("no %s scene under %.0f%% cloud within extended lookback", s.cfg.Collection, ceiling))
}

// cloudCeiling prefers the observed cloud cover signal over the seasonal
// default, loosened so the search does not exclude the best scene available.
func (s *Optical) cloudCeiling(req domain.AnalysisRequest) float64 {
	ceiling := domain.SeasonFor(req.EndDate).CloudCeiling()
	if req.CloudCover != nil && *req.CloudCover > ceiling {
		ceiling = *req.CloudCover
	}
	return ceiling
}

// fetchBands pulls the named band roles in parallel through the shared pool.
// Optional roles may come back empty; missing required roles fail the attempt.
func (s *Optical) fetchBands(ctx context.Context, item domain.SatelliteItem, bbox domain.BoundingBox, roles, required []string) (map[string]domain.BandGrid, Result) {
	for _, role := range required {
		if _, ok := item.Assets[s.cfg.Bands[role]]; !ok {
			return nil, failure(KindMissingBands, fmt.Sprintf("scene %s has no %s asset", item.ID, role))
		}
	}

	var mu sync.Mutex
	grids := make(map[string]domain.BandGrid, len(roles))

	g, gctx := errgroup.WithContext(ctx)
	for _, role := range roles {
		uri, ok := item.Assets[s.cfg.Bands[role]]
		if !ok {
			continue
		}
		g.Go(func() error {
			return s.pool.Do(gctx, func() error {
				grid, err := s.bands.FetchBand(gctx, uri, bbox)
				if err != nil {
					return fmt.Errorf("fetch %s band: %w", role, err)
				}
				mu.Lock()
				grids[role] = grid
				mu.Unlock()
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, classifyErr(err, "band fetch")
	}

	for _, role := range required {
		if grids[role].Empty() {
			return nil, failure(KindNoValidPixels, fmt.Sprintf("scene %s: %s band does not cover the request area", item.ID, role))
		}
	}
	return grids, Result{OK: true}
}

// classifyErr folds a transport error into a result record. Timeouts keep
// their retryable kind. An open breaker stays open through the whole retry
// window, so it is terminal for the tier and the chain moves on immediately.
// Anything else is internal and terminal too.
func classifyErr(err error, op string) Result {
	switch {
	case resilience.IsTimeout(err):
		return failure(KindTimeout, fmt.Sprintf("%s: %v", op, err))
	case resilience.IsCircuitOpen(err):
		return failure(KindUnavailable, fmt.Sprintf("%s: %v", op, err))
	default:
		return failure(KindInternal, fmt.Sprintf("%s: %v", op, err))
	}
}

func (s *Optical) success(item domain.SatelliteItem, indices domain.IndexSet, nutrients domain.NutrientEstimate, resolution domain.Resolution, start time.Time) Result {
	meta := domain.ResultMetadata{
		Resolution:     s.cfg.Resolution,
		ProcessingTime: domain.Now().Sub(start).Seconds(),
		Region:         resolution.Region.String(),
		SceneID:        item.ID,
	}
	if item.CloudCover >= 0 {
		cc := item.CloudCover
		meta.CloudCover = &cc
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
