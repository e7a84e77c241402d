package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// JobMetrics records embedding job attempts.
type JobMetrics interface {
	RecordEmbeddingJob(ctx context.Context, outcome string, duration time.Duration)
}

type jobMetrics struct {
	jobs     metric.Int64Counter
	duration metric.Float64Histogram
}

// NewJobMetrics creates JobMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewJobMetrics(meter metric.Meter) (JobMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	jobs, err := meter.Int64Counter(
		MetricNameEmbeddingJobs,
		metric.WithDescription("Embedding job attempts by outcome (completed, retry, cancelled)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding jobs counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameEmbeddingJobLatency,
		metric.WithDescription("Embedding job attempt duration in seconds, rate limit wait included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding job duration histogram: %w", err)
	}

	return &jobMetrics{jobs: jobs, duration: duration}, nil
}

func (m *jobMetrics) RecordEmbeddingJob(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedJobOutcomes)))

	m.jobs.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}
