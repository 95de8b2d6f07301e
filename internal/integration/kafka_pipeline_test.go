//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zumagro/soil-nutrient-service/internal/adapter/kafka"
	"github.com/zumagro/soil-nutrient-service/internal/config"
	"github.com/zumagro/soil-nutrient-service/internal/domain"
	"github.com/zumagro/soil-nutrient-service/internal/observability"
	"github.com/zumagro/soil-nutrient-service/internal/orchestrator"
	"github.com/zumagro/soil-nutrient-service/internal/pipeline"
	"github.com/zumagro/soil-nutrient-service/internal/village"
)

const (
	testSourceTopic = "test-requests"
	testSinkTopic   = "test-estimates"
)

// estimateMessage holds a deserialized message read from the sink topic.
type estimateMessage struct {
	Result  domain.FallbackResult
	Key     string
	Headers map[string]string
}

// readEstimate reads a single message from the sink consumer and deserializes it.
func readEstimate(ctx context.Context, t *testing.T, consumer *kafkago.Reader) estimateMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var result domain.FallbackResult
	require.NoError(t, json.Unmarshal(msg.Value, &result), "unmarshal sink message")

	return estimateMessage{
		Result:  result,
		Key:     string(msg.Key),
		Headers: headers,
	}
}

// newVillageOnlyEstimator builds an estimator stage whose fallback chain has
// no satellite sources, so every request resolves deterministically through
// the village tier without external HTTP dependencies.
func newVillageOnlyEstimator(metrics *observability.Metrics) *pipeline.FieldEstimator {
	records := []village.Record{
		{Name: "Bhanupratappur", District: "Kanker", Lat: 20.28, Lon: 81.08, Nitrogen: 410, Phosphorus: 28, Potassium: 170, SOC: 0.8},
		{Name: "Charama", District: "Kanker", Lat: 20.47, Lon: 81.35, Nitrogen: 380, Phosphorus: 33, Potassium: 150, SOC: 0.7},
	}
	villageEst := village.NewEstimator(records, 50, 5, discardLogger())
	cache := orchestrator.NewCache(100, time.Hour)
	orch := orchestrator.New(nil, villageEst, cache, orchestrator.Config{
		RequestBudget: 10 * time.Second,
	}, discardLogger(), metrics)
	return pipeline.NewFieldEstimator(orch, discardLogger(), metrics)
}

func requestPayload(t *testing.T, requestID, fieldID string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"requestId":   requestID,
		"fieldId":     fieldID,
		"coordinates": []float64{20.30, 81.20},
		"cropType":    "RICE",
		"startDate":   "2024-07-01",
		"endDate":     "2024-10-15",
	})
	require.NoError(t, err)
	return payload
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader (Extractor)
// and kafka.Writer (Publisher) correctly round-trip a message through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)

	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("test-reader-%d", time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}

	payload := requestPayload(t, "req-int-1", "field-int-1")
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte("field-int-1"),
		Value: payload,
	}))

	// Extract via kafka.Reader.
	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawRequest
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("field-int-1"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")

	// Commit the offset.
	require.NoError(t, raw.Commit(ctx))

	// Estimate through the village-only chain.
	metrics := observability.NewMetricsForTesting()
	estimator := newVillageOnlyEstimator(metrics)
	out, err := estimator.Estimate(ctx, raw)
	require.NoError(t, err)

	// Publish via kafka.Writer.
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	require.NoError(t, writer.PublishBatch(ctx, []domain.OutputMessage{out}))

	// Read from the sink topic and verify headers + value.
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	em := readEstimate(ctx, t, consumer)
	assert.Equal(t, "success", em.Headers["outcome"])
	assert.Equal(t, "village-lookup", em.Headers["source"])
	_, err = time.Parse(time.RFC3339, em.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")

	assert.Equal(t, "field-int-1", em.Key)
	assert.True(t, em.Result.Success)
	assert.Equal(t, "req-int-1", em.Result.RequestID)
	assert.Equal(t, "village-lookup", em.Result.Source)
	assert.True(t, em.Result.Synthetic)
	assert.Greater(t, em.Result.Nutrients.Nitrogen, 0.0)
	assert.LessOrEqual(t, em.Result.Confidence, 0.85)
}

// TestPipelineEndToEnd wires the full pipeline (Reader, Estimator, Writer)
// with real Kafka and verifies that every request gets exactly one estimate.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)

	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("test-pipeline-%d", time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}

	const requestCount = 10

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := make([]kafkago.Message, 0, requestCount+1)
	// One poison pill up front: it must be skipped without wedging the rest.
	msgs = append(msgs, kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")})
	for i := 0; i < requestCount; i++ {
		fieldID := fmt.Sprintf("field-%d", i)
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(fieldID),
			Value: requestPayload(t, "", fieldID),
		})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	// Wire up the pipeline.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	estimator := newVillageOnlyEstimator(metrics)
	p := pipeline.New(reader, estimator, writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := make([]estimateMessage, 0, requestCount)
	for len(received) < requestCount {
		received = append(received, readEstimate(ctx, t, consumer))
	}

	// Verify no extra message arrives (the poison pill was skipped).
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no message for the poison pill")

	pipelineCancel()
	require.NoError(t, <-errCh)

	seen := map[string]bool{}
	for _, em := range received {
		assert.Equal(t, "success", em.Headers["outcome"])
		assert.Equal(t, "village-lookup", em.Result.Source)
		assert.NotEmpty(t, em.Result.RequestID, "request id must be assigned when absent")
		assert.True(t, em.Result.Synthetic)
		assert.Equal(t, "RICE", em.Result.CropType)
		assert.GreaterOrEqual(t, em.Result.Confidence, 0.3)
		assert.LessOrEqual(t, em.Result.Confidence, 0.85)
		seen[em.Result.FieldID] = true
	}
	assert.Len(t, seen, requestCount, "every field should get exactly one estimate")
}
