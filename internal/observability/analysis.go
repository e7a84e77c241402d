package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AnalysisMetrics records content analysis outcomes and upstream failures.
type AnalysisMetrics interface {
	RecordAnalysis(ctx context.Context, inputKind, riskLevel string, harmful bool, duration time.Duration)
	RecordProviderError(ctx context.Context, reason string)
	RecordOCRError(ctx context.Context)
}

type analysisMetrics struct {
	analyses       metric.Int64Counter
	duration       metric.Float64Histogram
	providerErrors metric.Int64Counter
	ocrErrors      metric.Int64Counter
}

// NewAnalysisMetrics creates AnalysisMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewAnalysisMetrics(meter metric.Meter) (AnalysisMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	analyses, err := meter.Int64Counter(
		MetricNameAnalyses,
		metric.WithDescription("Total analyses by input kind (text, image), risk level and harmful flag"),
	)
	if err != nil {
		return nil, fmt.Errorf("create analyses counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameAnalysisDuration,
		metric.WithDescription("Analysis duration in seconds, OCR included for screenshots"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create analysis duration histogram: %w", err)
	}

	providerErrors, err := meter.Int64Counter(
		MetricNameProviderErrors,
		metric.WithDescription("Content Safety call failures by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("create provider errors counter: %w", err)
	}

	ocrErrors, err := meter.Int64Counter(
		MetricNameOCRErrors,
		metric.WithDescription("Screenshot OCR failures"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ocr errors counter: %w", err)
	}

	return &analysisMetrics{
		analyses:       analyses,
		duration:       duration,
		providerErrors: providerErrors,
		ocrErrors:      ocrErrors,
	}, nil
}

func (a *analysisMetrics) RecordAnalysis(ctx context.Context, inputKind, riskLevel string, harmful bool, duration time.Duration) {
	kind := attribute.String(AttrInputKind, NormalizeInputKind(inputKind))

	a.analyses.Add(ctx, 1, metric.WithAttributes(
		kind,
		attribute.String(AttrRiskLevel, NormalizeRiskLevel(riskLevel)),
		attribute.Bool(AttrHarmful, harmful),
	))
	a.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(kind))
}

func (a *analysisMetrics) RecordProviderError(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedProviderReasons)
	a.providerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}

func (a *analysisMetrics) RecordOCRError(ctx context.Context) {
	a.ocrErrors.Add(ctx, 1)
}
