// Package orchestrator runs the multi-tier fallback chain: cache check,
// satellite sources in priority order with bounded retries, and the village
// lookup as the guaranteed terminal tier.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/zumagro/soil-nutrient-service/internal/domain"
	"github.com/zumagro/soil-nutrient-service/internal/observability"
	"github.com/zumagro/soil-nutrient-service/internal/source"
	"github.com/zumagro/soil-nutrient-service/internal/village"
)

// cloudyPromotionThreshold is the observed cloud cover above which optical
// sources are unlikely to produce a usable scene, so the cloud-penetrating
// tier is promoted to the front of the chain.
const cloudyPromotionThreshold = 70.0

// villageSource is the provenance tag of the terminal tier.
const villageSource = "village-lookup"

// Config tunes one orchestrator instance.
type Config struct {
	BBoxHalfWidthDeg float64
	RequestBudget    time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	// WidenStepDeg grows the bounding box on every retry so a scene-edge
	// miss can still be recovered.
	WidenStepDeg float64
	// Parallel runs all satellite sources concurrently, still honoring
	// priority order for result preference.
	Parallel bool
}

func (c Config) withDefaults() Config {
	if c.BBoxHalfWidthDeg <= 0 {
		c.BBoxHalfWidthDeg = 0.01
	}
	if c.RequestBudget <= 0 {
		c.RequestBudget = 60 * time.Second
	}
	if c.RetryMaxAttempts < 1 {
		c.RetryMaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 2 * time.Second
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		c.RetryMaxDelay = 30 * time.Second
	}
	if c.WidenStepDeg <= 0 {
		c.WidenStepDeg = c.BBoxHalfWidthDeg / 2
	}
	return c
}

// Orchestrator coordinates the fallback chain for one process. Safe for
// concurrent use; all mutable state lives in the injected cache.
type Orchestrator struct {
	sources []source.Source
	village *village.Estimator
	cache   *Cache
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func New(sources []source.Source, villageEst *village.Estimator, cache *Cache, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	ordered := make([]source.Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority() < ordered[j].Priority() })

	return &Orchestrator{
		sources: ordered,
		village: villageEst,
		cache:   cache,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		metrics: metrics,
	}
}

// Estimate produces a fallback result for the request. It returns an error
// only for caller bugs (malformed coordinates) or the rare true terminal
// failure of an empty village dataset; every data-availability problem
// degrades through the chain instead.
func (o *Orchestrator) Estimate(ctx context.Context, req domain.AnalysisRequest) (domain.FallbackResult, error) {
	bbox, err := domain.BBoxFromCenter(req.Lat, req.Lon, o.cfg.BBoxHalfWidthDeg)
	if err != nil {
		return domain.FallbackResult{}, fmt.Errorf("request for field %q: %w", req.FieldID, err)
	}

	key := CacheKey(req.Lat, req.Lon, req.EndDate, req.Crop)
	if cached, ok := o.cache.Get(key); ok {
		o.metrics.EstimateCache.WithLabelValues("hit").Inc()
		cached.Cached = true
		cached.RequestID = req.RequestID
		cached.FieldID = req.FieldID
		o.logger.Debug("estimate served from cache", "field_id", req.FieldID, "source", cached.Source)
		return cached, nil
	}
	o.metrics.EstimateCache.WithLabelValues("miss").Inc()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestBudget)
	defer cancel()

	order := o.planOrder(req)

	var result domain.FallbackResult
	var ok bool
	if o.cfg.Parallel {
		result, ok = o.runParallel(ctx, order, req, bbox)
	} else {
		result, ok = o.runSequential(ctx, order, req, bbox)
	}
	if !ok {
		result, err = o.villageFallback(req, len(order))
		if err != nil {
			o.metrics.EstimateErrors.Inc()
			return domain.FallbackResult{}, err
		}
	}

	o.cache.Put(key, result)
	o.metrics.TierUsage.WithLabelValues(result.Source).Inc()
	o.logger.Info("estimate produced",
		"field_id", req.FieldID,
		"source", result.Source,
		"tier", result.Tier,
		"confidence", result.Confidence,
	)
	return result, nil
}

// planOrder applies the selection heuristic to the default priority order.
// Heavy cloud or an active monsoon promotes cloud-penetrating sources to the
// front. During the kharif season inside India, where cloud build-up is
// likely but not certain, the best optical source keeps the lead and the
// cloud-penetrating sources move directly behind it. Optical sources always
// keep their relative order.
func (o *Orchestrator) planOrder(req domain.AnalysisRequest) []source.Source {
	cloudy := req.MonsoonPhase == "active_monsoon" ||
		(req.CloudCover != nil && *req.CloudCover > cloudyPromotionThreshold)
	if cloudy {
		order := promoteCloudPenetrating(o.sources, 0)
		if len(order) > 0 && order[0].CloudPenetrating() {
			o.logger.Debug("promoting cloud-penetrating source", "source", order[0].Name(),
				"monsoon_phase", req.MonsoonPhase)
		}
		return order
	}

	if domain.SeasonFor(req.EndDate) == domain.SeasonKharif && domain.InIndia(req.Lat, req.Lon) {
		return promoteCloudPenetrating(o.sources, 1)
	}
	return o.sources
}

// promoteCloudPenetrating moves cloud-penetrating sources ahead of the
// optical ones from position keep onward; the first keep sources stay put.
func promoteCloudPenetrating(sources []source.Source, keep int) []source.Source {
	if keep > len(sources) {
		keep = len(sources)
	}
	order := make([]source.Source, 0, len(sources))
	order = append(order, sources[:keep]...)
	for _, s := range sources[keep:] {
		if s.CloudPenetrating() {
			order = append(order, s)
		}
	}
	for _, s := range sources[keep:] {
		if !s.CloudPenetrating() {
			order = append(order, s)
		}
	}
	return order
}

func (o *Orchestrator) runSequential(ctx context.Context, order []source.Source, req domain.AnalysisRequest, bbox domain.BoundingBox) (domain.FallbackResult, bool) {
	for tier, src := range order {
		if ctx.Err() != nil {
			o.logger.Warn("request budget exhausted before trying source",
				"field_id", req.FieldID, "source", src.Name())
			break
		}
		res := o.trySource(ctx, src, req, bbox)
		if res.OK {
			return o.satelliteResult(src, tier, req, res), true
		}
	}
	return domain.FallbackResult{}, false
}

// runParallel launches every source at once but accepts outcomes strictly in
// priority order: a lower tier's early success never preempts a higher tier
// that is still running. The first accepted success cancels the rest.
func (o *Orchestrator) runParallel(ctx context.Context, order []source.Source, req domain.AnalysisRequest, bbox domain.BoundingBox) (domain.FallbackResult, bool) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]chan source.Result, len(order))
	for i, src := range order {
		outcomes[i] = make(chan source.Result, 1)
		go func(ch chan<- source.Result, src source.Source) {
			ch <- o.trySource(runCtx, src, req, bbox)
		}(outcomes[i], src)
	}

	for tier, src := range order {
		select {
		case res := <-outcomes[tier]:
			if res.OK {
				cancel()
				return o.satelliteResult(src, tier, req, res), true
			}
		case <-ctx.Done():
			// Budget exceeded: abandon whatever is still running.
			o.logger.Warn("request budget exhausted, abandoning in-flight sources",
				"field_id", req.FieldID)
			return domain.FallbackResult{}, false
		}
	}
	return domain.FallbackResult{}, false
}

// trySource runs one source with bounded retries. Only timeouts are retried;
// each retry backs off exponentially and widens the bounding box one step.
func (o *Orchestrator) trySource(ctx context.Context, src source.Source, req domain.AnalysisRequest, bbox domain.BoundingBox) source.Result {
	name := src.Name()
	b := bbox
	delay := o.cfg.RetryBaseDelay
	last := source.Result{Kind: source.KindTimeout, Message: "request budget exhausted"}

	for attempt := 1; attempt <= o.cfg.RetryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return last
		}

		start := time.Now()
		res := src.Process(ctx, req, b)
		o.metrics.SourceDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		if res.OK {
			o.metrics.SourceAttempts.WithLabelValues(name, "success").Inc()
			return res
		}
		o.metrics.SourceAttempts.WithLabelValues(name, "failure").Inc()
		o.metrics.SourceFailures.WithLabelValues(name, string(res.Kind)).Inc()
		o.logger.Debug("source attempt failed",
			"field_id", req.FieldID,
			"source", name,
			"attempt", attempt,
			"kind", res.Kind,
			"error", res.Message,
		)

		last = res
		if !res.Retryable() || attempt == o.cfg.RetryMaxAttempts {
			break
		}

		b = b.Widened(o.cfg.WidenStepDeg)
		if !sleepWithContext(ctx, delay) {
			break
		}
		delay *= 2
		if delay > o.cfg.RetryMaxDelay {
			delay = o.cfg.RetryMaxDelay
		}
	}
	return last
}

func (o *Orchestrator) satelliteResult(src source.Source, tier int, req domain.AnalysisRequest, res source.Result) domain.FallbackResult {
	cloud := 0.0
	if res.Metadata.CloudCover != nil {
		cloud = *res.Metadata.CloudCover
	}

	return domain.FallbackResult{
		Success:     true,
		RequestID:   req.RequestID,
		FieldID:     req.FieldID,
		Source:      src.Name(),
		Tier:        tier,
		CropType:    req.CropName,
		Indices:     res.Indices,
		Nutrients:   res.Nutrients,
		Confidence:  domain.ScoreSatellite(src.ConfidenceBaseline(), cloud),
		Metadata:    res.Metadata,
		ProcessedAt: domain.Now(),
	}
}

// villageFallback is the terminal tier. It fails only when the survey dataset
// is empty, which is a deployment error rather than a data condition.
func (o *Orchestrator) villageFallback(req domain.AnalysisRequest, tier int) (domain.FallbackResult, error) {
	if o.village.Empty() {
		return domain.FallbackResult{}, fmt.Errorf("field %q: all satellite sources failed and the village dataset is empty", req.FieldID)
	}

	start := domain.Now()
	est := o.village.Estimate(req.Lat, req.Lon)
	region := domain.ClassifyRegion(req.Lat, req.Lon)

	return domain.FallbackResult{
		Success:    true,
		RequestID:  req.RequestID,
		FieldID:    req.FieldID,
		Source:     villageSource,
		Tier:       tier,
		Synthetic:  true,
		CropType:   req.CropName,
		Indices:    est.Indices,
		Nutrients:  est.Nutrients,
		Confidence: est.Confidence,
		Metadata: domain.ResultMetadata{
			Resolution:     "village-survey",
			ProcessingTime: domain.Now().Sub(start).Seconds(),
			Region:         region.String(),
		},
		ProcessedAt: domain.Now(),
	}, nil
}

// sleepWithContext waits for d unless the context ends first. Returns false
// when the wait was cut short.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
