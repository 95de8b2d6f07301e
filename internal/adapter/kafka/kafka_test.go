package kafka

import (
	"context"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zumagro/soil-nutrient-service/internal/domain"
)

func TestMapMessageToRawRequest(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("field-1"),
		Value:     []byte(`{"fieldId":"field-1"}`),
		Topic:     "field-analysis-requests",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "origin", Value: []byte("field-api")},
		},
	}

	r := &Reader{}
	raw := r.mapMessageToRawRequest(msg)

	assert.Equal(t, []byte("field-1"), raw.Key)
	assert.JSONEq(t, `{"fieldId":"field-1"}`, string(raw.Value))
	assert.Equal(t, "field-analysis-requests", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "field-api", raw.Headers["origin"])
	assert.NotNil(t, raw.Commit)
}

func TestMessageFromOutput(t *testing.T) {
	now := time.Date(2024, 10, 15, 9, 30, 0, 0, time.UTC)
	out, err := domain.SerializeResult(domain.FallbackResult{
		Success:     true,
		FieldID:     "field-1",
		Source:      "sentinel2-l2a",
		Tier:        0,
		CropType:    "RICE",
		Confidence:  0.92,
		ProcessedAt: now,
	})
	require.NoError(t, err)

	msg := messageFromOutput(out)

	assert.Equal(t, []byte("field-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"source":"sentinel2-l2a"`)
	require.Len(t, msg.Headers, 4)
	assert.Equal(t, "outcome", msg.Headers[0].Key)
	assert.Equal(t, []byte("success"), msg.Headers[0].Value)
	assert.Equal(t, "source", msg.Headers[1].Key)
	assert.Equal(t, []byte("sentinel2-l2a"), msg.Headers[1].Value)
	assert.Equal(t, "tier", msg.Headers[2].Key)
	assert.Equal(t, []byte("0"), msg.Headers[2].Value)
	assert.Equal(t, "processed_at", msg.Headers[3].Key)
	assert.Equal(t, []byte("2024-10-15T09:30:00Z"), msg.Headers[3].Value)
}

func TestMessageFromOutput_Failure(t *testing.T) {
	out, err := domain.SerializeFailure(domain.FailureResult{
		RequestID: "req-1",
		FieldID:   "field-2",
		Error:     "all satellite sources failed and the village dataset is empty",
	})
	require.NoError(t, err)

	msg := messageFromOutput(out)

	assert.Equal(t, []byte("field-2"), msg.Key)
	assert.Contains(t, string(msg.Value), `"success":false`)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "outcome", msg.Headers[0].Key)
	assert.Equal(t, []byte("failure"), msg.Headers[0].Value)
}

func TestPublishBatch_EmptyIsNoop(t *testing.T) {
	w := &Writer{}
	assert.NoError(t, w.PublishBatch(context.Background(), nil))
}
