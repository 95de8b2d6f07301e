package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/zumagro/soil-nutrient-service/internal/domain"
	"github.com/zumagro/soil-nutrient-service/internal/observability"
)

// ResultEstimator produces a fallback result for a validated request. It is
// implemented by the orchestrator.
type ResultEstimator interface {
	Estimate(ctx context.Context, req domain.AnalysisRequest) (domain.FallbackResult, error)
}

// FieldEstimator implements the pipeline Estimator stage: parse, correlate,
// run the fallback chain, serialize.
type FieldEstimator struct {
	estimator ResultEstimator
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewFieldEstimator creates the estimator stage.
func NewFieldEstimator(est ResultEstimator, logger *slog.Logger, metrics *observability.Metrics) *FieldEstimator {
	return &FieldEstimator{
		estimator: est,
		logger:    logger,
		metrics:   metrics,
	}
}

// Estimate parses a raw request and runs it through the fallback chain.
// Parse failures return an error so the pipeline skips the message. Terminal
// estimation failures are themselves published, as a failure record, so every
// well-formed request gets exactly one answer on the sink topic.
func (f *FieldEstimator) Estimate(ctx context.Context, raw domain.RawRequest) (domain.OutputMessage, error) {
	req, err := domain.ParseRawRequest(raw)
	if err != nil {
		return domain.OutputMessage{}, err
	}

	// Requests published without a correlation ID still need one for
	// downstream joins and log tracing.
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	res, err := f.estimator.Estimate(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.OutputMessage{}, err
		}
		f.logger.Error("estimation failed terminally",
			"error", err,
			"request_id", req.RequestID,
			"field_id", req.FieldID,
		)
		f.metrics.EstimateErrors.Inc()
		return domain.SerializeFailure(domain.FailureResult{
			RequestID: req.RequestID,
			FieldID:   req.FieldID,
			Error:     err.Error(),
		})
	}

	return domain.SerializeResult(res)
}
