package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// estimation pipeline.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	EstimateErrors   prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Fallback chain metrics.
	TierUsage       *prometheus.CounterVec   // labels: source
	SourceAttempts  *prometheus.CounterVec   // labels: source, outcome={success,failure}
	SourceFailures  *prometheus.CounterVec   // labels: source, kind
	SourceDuration  *prometheus.HistogramVec // labels: source
	EstimateCache   *prometheus.CounterVec   // labels: result={hit,miss}
	CatalogDuration prometheus.Histogram
	BandDuration    prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soil_nutrient",
			Name:      "messages_consumed_total",
			Help:      "Total analysis requests read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soil_nutrient",
			Name:      "messages_produced_total",
			Help:      "Total estimates written to the sink topic.",
		}),
		EstimateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soil_nutrient",
			Name:      "estimate_errors_total",
			Help:      "Total requests that failed all tiers including the village fallback.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soil_nutrient",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "soil_nutrient",
			Name:      "batch_size",
			Help:      "Number of requests per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "soil_nutrient",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-estimate-publish cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		TierUsage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soil_nutrient",
			Name:      "tier_usage_total",
			Help:      "Successful estimates by the data source that produced them.",
		}, []string{"source"}),
		SourceAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soil_nutrient",
			Name:      "source_attempts_total",
			Help:      "Per-source processing attempts by outcome.",
		}, []string{"source", "outcome"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soil_nutrient",
			Name:      "source_failures_total",
			Help:      "Per-source failures by failure kind.",
		}, []string{"source", "kind"}),
		SourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "soil_nutrient",
			Name:      "source_duration_seconds",
			Help:      "Duration of one source processing attempt.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 15, 20, 30},
		}, []string{"source"}),
		EstimateCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soil_nutrient",
			Name:      "estimate_cache_total",
			Help:      "Estimate cache lookups by result.",
		}, []string{"result"}),
		CatalogDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "soil_nutrient",
			Name:      "catalog_search_duration_seconds",
			Help:      "Imagery catalog search duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		BandDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "soil_nutrient",
			Name:      "band_fetch_duration_seconds",
			Help:      "Spectral band fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}

	prometheus.MustRegister(
		m.MessagesConsumed,
		m.MessagesProduced,
		m.EstimateErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.TierUsage,
		m.SourceAttempts,
		m.SourceFailures,
		m.SourceDuration,
		m.EstimateCache,
		m.CatalogDuration,
		m.BandDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		MessagesConsumed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "soil_nutrient", Name: "messages_consumed_total"}),
		MessagesProduced:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "soil_nutrient", Name: "messages_produced_total"}),
		EstimateErrors:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "soil_nutrient", Name: "estimate_errors_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "soil_nutrient", Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "soil_nutrient", Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "soil_nutrient", Name: "batch_processing_duration_seconds"}),
		TierUsage:               prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "soil_nutrient", Name: "tier_usage_total"}, []string{"source"}),
		SourceAttempts:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "soil_nutrient", Name: "source_attempts_total"}, []string{"source", "outcome"}),
		SourceFailures:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "soil_nutrient", Name: "source_failures_total"}, []string{"source", "kind"}),
		SourceDuration:          prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "soil_nutrient", Name: "source_duration_seconds"}, []string{"source"}),
		EstimateCache:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "soil_nutrient", Name: "estimate_cache_total"}, []string{"result"}),
		CatalogDuration:         prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "soil_nutrient", Name: "catalog_search_duration_seconds"}),
		BandDuration:            prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "soil_nutrient", Name: "band_fetch_duration_seconds"}),
	}
}
