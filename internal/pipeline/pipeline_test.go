package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zumagro/soil-nutrient-service/internal/domain"
	"github.com/zumagro/soil-nutrient-service/internal/observability"
	"github.com/zumagro/soil-nutrient-service/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawRequest
	index   atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawRequest, error) {
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockResultEstimator struct {
	mu   sync.Mutex
	err  error
	reqs []domain.AnalysisRequest
}

func (m *mockResultEstimator) Estimate(_ context.Context, req domain.AnalysisRequest) (domain.FallbackResult, error) {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()
	if m.err != nil {
		return domain.FallbackResult{}, m.err
	}
	return domain.FallbackResult{
		Success:    true,
		RequestID:  req.RequestID,
		FieldID:    req.FieldID,
		Source:     "sentinel2-l2a",
		CropType:   req.CropName,
		Confidence: 0.9,
	}, nil
}

type mockPublisher struct {
	mu        sync.Mutex
	published []domain.OutputMessage
	err       error
}

func (m *mockPublisher) PublishBatch(_ context.Context, msgs []domain.OutputMessage) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	m.published = append(m.published, msgs...)
	m.mu.Unlock()
	return nil
}

func (m *mockPublisher) messages() []domain.OutputMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OutputMessage(nil), m.published...)
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func newEstimatorStage(metrics *observability.Metrics, res *mockResultEstimator) *pipeline.FieldEstimator {
	return pipeline.NewFieldEstimator(res, slog.Default(), metrics)
}

// --- pipeline tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	raw := makeRawRequest(t, "req-1", "field-1")

	ext := &mockExtractor{batches: [][]domain.RawRequest{{raw}}}
	res := &mockResultEstimator{}
	pub := &mockPublisher{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, newEstimatorStage(metrics, res), pub, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)

	msgs := pub.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("field-1"), msgs[0].Key)
	assert.Equal(t, "success", msgs[0].Headers["outcome"])
	assert.Equal(t, "sentinel2-l2a", msgs[0].Headers["source"])
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no batches, will block
	res := &mockResultEstimator{}
	pub := &mockPublisher{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, newEstimatorStage(metrics, res), pub, slog.Default(), metrics, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, pub.messages())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_MalformedRequestSkippedAndCommitted(t *testing.T) {
	var committed atomic.Bool
	raw := domain.RawRequest{
		Value: []byte("not json"),
		Topic: "field-analysis-requests",
		Commit: func(_ context.Context) error {
			committed.Store(true)
			return nil
		},
	}

	ext := &mockExtractor{batches: [][]domain.RawRequest{{raw}}}
	res := &mockResultEstimator{}
	pub := &mockPublisher{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, newEstimatorStage(metrics, res), pub, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, pub.messages())
	assert.True(t, committed.Load(), "poison message must be committed so it is not redelivered")
	assert.Empty(t, res.reqs)
}

func TestPipeline_Run_CommitsAfterPublish(t *testing.T) {
	var committed atomic.Bool
	raw := makeRawRequest(t, "req-5", "field-5")
	raw.Topic = "field-analysis-requests"
	raw.Commit = func(_ context.Context) error {
		committed.Store(true)
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawRequest{{raw}}}
	res := &mockResultEstimator{}
	pub := &mockPublisher{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, newEstimatorStage(metrics, res), pub, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.True(t, committed.Load())
}

func TestPipeline_Run_PublishFailureHoldsCommit(t *testing.T) {
	var committed atomic.Bool
	raw := makeRawRequest(t, "req-6", "field-6")
	raw.Commit = func(_ context.Context) error {
		committed.Store(true)
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawRequest{{raw}}}
	res := &mockResultEstimator{}
	pub := &mockPublisher{err: errors.New("broker unavailable")}
	metrics := newTestMetrics()

	p := pipeline.New(ext, newEstimatorStage(metrics, res), pub, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.False(t, committed.Load(), "offset must not be committed when publish fails")
	assert.Error(t, p.CheckReadiness(context.Background()))
}

// --- estimator stage tests ---

func TestFieldEstimator_AssignsRequestID(t *testing.T) {
	res := &mockResultEstimator{}
	stage := newEstimatorStage(newTestMetrics(), res)

	raw := makeRawRequest(t, "", "field-7")
	out, err := stage.Estimate(context.Background(), raw)
	require.NoError(t, err)

	require.Len(t, res.reqs, 1)
	assert.NotEmpty(t, res.reqs[0].RequestID)

	var result domain.FallbackResult
	require.NoError(t, json.Unmarshal(out.Value, &result))
	assert.Equal(t, res.reqs[0].RequestID, result.RequestID)
}

func TestFieldEstimator_PreservesRequestID(t *testing.T) {
	res := &mockResultEstimator{}
	stage := newEstimatorStage(newTestMetrics(), res)

	raw := makeRawRequest(t, "req-keep", "field-8")
	_, err := stage.Estimate(context.Background(), raw)
	require.NoError(t, err)

	require.Len(t, res.reqs, 1)
	assert.Equal(t, "req-keep", res.reqs[0].RequestID)
}

func TestFieldEstimator_TerminalFailureBecomesFailureRecord(t *testing.T) {
	res := &mockResultEstimator{err: errors.New("village dataset is empty")}
	stage := newEstimatorStage(newTestMetrics(), res)

	raw := makeRawRequest(t, "req-9", "field-9")
	out, err := stage.Estimate(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, "failure", out.Headers["outcome"])
	assert.Equal(t, []byte("field-9"), out.Key)

	var failure domain.FailureResult
	require.NoError(t, json.Unmarshal(out.Value, &failure))
	assert.False(t, failure.Success)
	assert.Equal(t, "field-9", failure.FieldID)
	assert.Contains(t, failure.Error, "village dataset is empty")
}

func TestFieldEstimator_CancelledContextIsNotTerminal(t *testing.T) {
	res := &mockResultEstimator{err: context.Canceled}
	stage := newEstimatorStage(newTestMetrics(), res)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	raw := makeRawRequest(t, "req-10", "field-10")
	_, err := stage.Estimate(ctx, raw)
	assert.Error(t, err, "cancellation must not publish a failure record")
}

// --- helpers ---

func makeRawRequest(t *testing.T, requestID, fieldID string) domain.RawRequest {
	t.Helper()
	payload := map[string]any{
		"fieldId":     fieldID,
		"coordinates": []float64{20.25, 81.3},
		"cropType":    "RICE",
		"startDate":   "2024-07-01",
		"endDate":     "2024-10-15",
	}
	if requestID != "" {
		payload["requestId"] = requestID
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return domain.RawRequest{
		Key:   []byte(fieldID),
		Value: data,
	}
}
