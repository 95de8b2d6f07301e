package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "field-analysis-requests", cfg.KafkaSourceTopic)
	assert.Equal(t, "soil-nutrient-estimates", cfg.KafkaSinkTopic)
	assert.Equal(t, "soil-nutrient-service", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 20, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)

	assert.Equal(t, 10*time.Second, cfg.CatalogTimeout)
	assert.Equal(t, 15*time.Second, cfg.RasterTimeout)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.InDelta(t, 0.01, cfg.BBoxHalfWidthDeg, 1e-12)
	assert.Equal(t, 60*time.Second, cfg.RequestBudget)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.RetryMaxDelay)
	assert.False(t, cfg.ParallelSources)

	assert.Equal(t, 6*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 1000, cfg.CacheSize)
	assert.Equal(t, "data/villages.yaml", cfg.VillageDataPath)
	assert.InDelta(t, 50.0, cfg.VillageMaxDistanceKm, 1e-12)
	assert.Equal(t, 5, cfg.VillageTopN)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("CATALOG_URL", "http://localhost:8088/stac")
	t.Setenv("CATALOG_TIMEOUT", "3s")
	t.Setenv("RASTER_TIMEOUT", "8s")
	t.Setenv("FETCH_CONCURRENCY", "2")
	t.Setenv("BBOX_HALF_WIDTH_DEG", "0.02")
	t.Setenv("REQUEST_BUDGET", "90s")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("PARALLEL_SOURCES", "true")
	t.Setenv("CACHE_TTL", "1h")
	t.Setenv("CACHE_SIZE", "50")
	t.Setenv("VILLAGE_DATA_PATH", "/var/lib/villages.yaml")
	t.Setenv("VILLAGE_MAX_DISTANCE_KM", "25")
	t.Setenv("VILLAGE_TOP_N", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, "http://localhost:8088/stac", cfg.CatalogURL)
	assert.Equal(t, 3*time.Second, cfg.CatalogTimeout)
	assert.Equal(t, 8*time.Second, cfg.RasterTimeout)
	assert.Equal(t, 2, cfg.FetchConcurrency)
	assert.InDelta(t, 0.02, cfg.BBoxHalfWidthDeg, 1e-12)
	assert.Equal(t, 90*time.Second, cfg.RequestBudget)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.True(t, cfg.ParallelSources)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 50, cfg.CacheSize)
	assert.Equal(t, "/var/lib/villages.yaml", cfg.VillageDataPath)
	assert.InDelta(t, 25.0, cfg.VillageMaxDistanceKm, 1e-12)
	assert.Equal(t, 3, cfg.VillageTopN)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_BatchSizeTooLarge(t *testing.T) {
	t.Setenv("BATCH_SIZE", "9999")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidRequestBudget(t *testing.T) {
	t.Setenv("REQUEST_BUDGET", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_BUDGET")
}

func TestLoad_InvalidBBoxHalfWidth(t *testing.T) {
	t.Setenv("BBOX_HALF_WIDTH_DEG", "-0.01")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BBOX_HALF_WIDTH_DEG")
}

func TestLoad_InvalidVillageTopN(t *testing.T) {
	t.Setenv("VILLAGE_TOP_N", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VILLAGE_TOP_N")
}

func TestLoad_InvalidRetryMaxAttempts(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RETRY_MAX_ATTEMPTS")
}
