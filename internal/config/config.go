package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Imagery catalog and raster access.
	CatalogURL       string
	CatalogTimeout   time.Duration
	RasterTimeout    time.Duration
	FetchConcurrency int

	// Fallback orchestration.
	BBoxHalfWidthDeg float64
	RequestBudget    time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	ParallelSources  bool

	// Estimate cache.
	CacheTTL  time.Duration
	CacheSize int

	// Village soil database fallback.
	VillageDataPath      string
	VillageMaxDistanceKm float64
	VillageTopN          int

	// Optional district calibration overrides, YAML.
	CalibrationPath string
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is merged in first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		KafkaBrokers:     splitBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: envOrDefault("KAFKA_SOURCE_TOPIC", "field-analysis-requests"),
		KafkaSinkTopic:   envOrDefault("KAFKA_SINK_TOPIC", "soil-nutrient-estimates"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "soil-nutrient-service"),
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),

		CatalogURL:      envOrDefault("CATALOG_URL", "https://earth-search.aws.element84.com/v1"),
		VillageDataPath: envOrDefault("VILLAGE_DATA_PATH", "data/villages.yaml"),
		CalibrationPath: os.Getenv("CALIBRATION_PATH"),
		ParallelSources: os.Getenv("PARALLEL_SOURCES") == "true",
	}

	var err error
	if cfg.ShutdownTimeout, err = durationVar("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = intVar("BATCH_SIZE", 20); err != nil {
		return nil, err
	}
	if cfg.BatchFlushInterval, err = durationVar("BATCH_FLUSH_INTERVAL", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.CatalogTimeout, err = durationVar("CATALOG_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RasterTimeout, err = durationVar("RASTER_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchConcurrency, err = intVar("FETCH_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.BBoxHalfWidthDeg, err = floatVar("BBOX_HALF_WIDTH_DEG", 0.01); err != nil {
		return nil, err
	}
	if cfg.RequestBudget, err = durationVar("REQUEST_BUDGET", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryMaxAttempts, err = intVar("RETRY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.RetryBaseDelay, err = durationVar("RETRY_BASE_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryMaxDelay, err = durationVar("RETRY_MAX_DELAY", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = durationVar("CACHE_TTL", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CacheSize, err = intVar("CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.VillageMaxDistanceKm, err = floatVar("VILLAGE_MAX_DISTANCE_KM", 50); err != nil {
		return nil, err
	}
	if cfg.VillageTopN, err = intVar("VILLAGE_TOP_N", 5); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.KafkaSourceTopic == "" {
		return errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required")
	}
	if c.CatalogURL == "" {
		return errors.New("CATALOG_URL is required")
	}
	if c.BatchSize < 1 || c.BatchSize > 500 {
		return errors.New("BATCH_SIZE must be between 1 and 500")
	}
	if c.BBoxHalfWidthDeg <= 0 {
		return errors.New("BBOX_HALF_WIDTH_DEG must be positive")
	}
	if c.RetryMaxAttempts < 1 {
		return errors.New("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.VillageMaxDistanceKm <= 0 {
		return errors.New("VILLAGE_MAX_DISTANCE_KM must be positive")
	}
	if c.VillageTopN < 1 {
		return errors.New("VILLAGE_TOP_N must be at least 1")
	}
	if c.FetchConcurrency < 1 {
		return errors.New("FETCH_CONCURRENCY must be at least 1")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func durationVar(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func intVar(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func floatVar(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}
