package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	meterScope       = "github.com/trustify/backend/internal/observability"
	cardinalityLimit = 2000
)

// Metrics exporters selected by OTEL_METRICS_EXPORTER.
const (
	// MetricsExporterPrometheus serves a /metrics scrape endpoint; only the API has one.
	MetricsExporterPrometheus = "prometheus"
	// MetricsExporterOTLP pushes to OTEL_EXPORTER_OTLP_ENDPOINT; used by processes without a listener.
	MetricsExporterOTLP = "otlp"
)

// metricExportInterval is the OTLP push interval.
const metricExportInterval = 60 * time.Second

// latencyHistogramBoundaries are Prometheus-style buckets (seconds) for request and analysis duration histograms.
// Content Safety calls usually take a few hundred milliseconds.
var latencyHistogramBoundaries = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// MeterProviderShutdown is the subset of the SDK MeterProvider needed for shutdown.
type MeterProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// MeterProviderConfig holds configuration for creating the MeterProvider.
type MeterProviderConfig struct {
	// ServiceName is used in the resource (default: trustify-api).
	ServiceName string
}

// NewMeterProvider creates a MeterProvider backed by a Prometheus exporter on its own registry.
// It returns the provider (caller must Shutdown it), the /metrics handler and a Meter for the
// New*Metrics constructors.
func NewMeterProvider(_ context.Context, cfg MeterProviderConfig) (MeterProviderShutdown, http.Handler, metric.Meter, error) {
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, nil, nil, err
	}

	reg := prometheus.NewRegistry()

	exporter, err := prometheusexporter.New(
		prometheusexporter.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := newSDKMeterProvider(res, exporter)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return mp, handler, mp.Meter(meterScope), nil
}

// NewOTLPMeterProvider creates a MeterProvider that pushes over OTLP/HTTP every minute and on Shutdown.
// The exporter reads OTEL_EXPORTER_OTLP_ENDPOINT (and the metrics-specific variants) from the environment.
func NewOTLPMeterProvider(ctx context.Context, cfg MeterProviderConfig) (MeterProviderShutdown, metric.Meter, error) {
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, nil, err
	}

	exp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create OTLP metric exporter: %w", err)
	}

	mp := newSDKMeterProvider(res, sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(metricExportInterval)))

	return mp, mp.Meter(meterScope), nil
}

func newSDKMeterProvider(res *resource.Resource, reader sdkmetric.Reader) *sdkmetric.MeterProvider {
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "trustify_*_duration_seconds"},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
		),
	)
}
