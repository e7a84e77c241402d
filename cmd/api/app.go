package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/trustify/backend/internal/analyzer"
	"github.com/trustify/backend/internal/api/handlers"
	"github.com/trustify/backend/internal/api/middleware"
	"github.com/trustify/backend/internal/config"
	"github.com/trustify/backend/internal/contentsafety"
	"github.com/trustify/backend/internal/observability"
	"github.com/trustify/backend/internal/ocr"
)

// Routes served by the API. Also the label set of the HTTP metrics.
const (
	routeHealth            = "/health"
	routeMetrics           = "/metrics"
	routeAnalyzeText       = "/analyze/text"
	routeAnalyzeScreenshot = "/analyze/screenshot"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	server         *http.Server
	meterProvider  observability.MeterProviderShutdown
	tracerProvider *sdktrace.TracerProvider
}

// appMetrics groups the instruments; every field is nil when metrics are disabled.
type appMetrics struct {
	handler  http.Handler
	http     observability.HTTPMetrics
	api      observability.APIMetrics
	analysis observability.AnalysisMetrics
	cache    observability.CacheMetrics
}

func newAppMetrics(meter metric.Meter, handler http.Handler) (*appMetrics, error) {
	m := &appMetrics{handler: handler}

	var err error

	if m.http, err = observability.NewHTTPMetrics(meter); err != nil {
		return nil, err
	}

	if m.api, err = observability.NewAPIMetrics(meter); err != nil {
		return nil, err
	}

	if m.analysis, err = observability.NewAnalysisMetrics(meter); err != nil {
		return nil, err
	}

	if m.cache, err = observability.NewCacheMetrics(meter); err != nil {
		return nil, err
	}

	return m, nil
}

// NewApp builds and wires all components. It does not start the HTTP server;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{cfg: cfg}

	var (
		meter        metric.Meter
		metricsRoute http.Handler
	)

	switch cfg.MetricsExporter {
	case "":
		slog.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	case observability.MetricsExporterPrometheus:
		mp, handler, m, err := observability.NewMeterProvider(ctx, observability.MeterProviderConfig{ServiceName: cfg.ServiceName})
		if err != nil {
			return nil, fmt.Errorf("create meter provider: %w", err)
		}

		app.meterProvider, metricsRoute, meter = mp, handler, m
	case observability.MetricsExporterOTLP:
		mp, m, err := observability.NewOTLPMeterProvider(ctx, observability.MeterProviderConfig{ServiceName: cfg.ServiceName})
		if err != nil {
			return nil, fmt.Errorf("create OTLP meter provider: %w", err)
		}

		app.meterProvider, meter = mp, m
	default:
		slog.Warn("metrics not enabled: unsupported OTEL_METRICS_EXPORTER", "exporter", cfg.MetricsExporter)
	}

	metrics, err := newAppMetrics(meter, metricsRoute)
	if err != nil {
		_ = app.shutdownObservability(ctx)

		return nil, fmt.Errorf("create metrics: %w", err)
	}

	tracerProvider, err := observability.NewTracerProvider(ctx, cfg.TracesExporter, cfg.ServiceName)
	if err != nil {
		_ = app.shutdownObservability(ctx)

		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	if tracerProvider == nil {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty, unset or unsupported)")
	} else {
		app.tracerProvider = tracerProvider
		otel.SetTracerProvider(tracerProvider)
	}

	outbound := otelhttp.NewTransport(http.DefaultTransport)

	csClient, err := contentsafety.NewClient(contentsafety.Options{
		Endpoint:   cfg.ContentSafetyEndpoint,
		Key:        cfg.ContentSafetyKey,
		OutputType: cfg.ContentSafetyOutputType,
		RateLimit:  cfg.ContentSafetyRateLimit,
		RetryMax:   cfg.ContentSafetyRetryMax,
		Transport:  outbound,
	})
	if err != nil {
		_ = app.shutdownObservability(ctx)

		return nil, fmt.Errorf("create content safety client: %w", err)
	}

	textAnalyzer, err := analyzer.New(analyzer.Params{
		Provider:     analyzer.NewAzureProvider(csClient),
		CacheSize:    cfg.AnalysisCacheSize,
		CacheTTL:     cfg.AnalysisCacheTTL,
		CacheMetrics: metrics.cache,
		Metrics:      metrics.analysis,
		Logger:       slog.Default(),
	})
	if err != nil {
		_ = app.shutdownObservability(ctx)

		return nil, fmt.Errorf("create analyzer: %w", err)
	}

	// Without Vision credentials every screenshot reports an OCR error, as the handler documents.
	var extractor ocr.Extractor

	if cfg.VisionConfigured() {
		azureOCR, err := ocr.NewAzureExtractor(ocr.AzureOptions{
			Endpoint:  cfg.VisionEndpoint,
			Key:       cfg.VisionKey,
			RetryMax:  cfg.VisionRetryMax,
			Transport: outbound,
		})
		if err != nil {
			_ = app.shutdownObservability(ctx)

			return nil, fmt.Errorf("create ocr extractor: %w", err)
		}

		extractor = azureOCR
	} else {
		slog.Warn("screenshot OCR not configured (AZURE_VISION_KEY or AZURE_VISION_ENDPOINT unset)")
	}

	app.server = newHTTPServer(
		cfg,
		handlers.NewHealthHandler(),
		handlers.NewAnalyzeHandler(textAnalyzer, extractor, metrics.analysis),
		metrics,
	)

	return app, nil
}

// newHTTPServer builds the HTTP server.
// Handler chain: RequestID -> otelhttp -> Logging -> Metrics -> MaxBody -> Recover -> mux, so access
// logs carry the request id and trace ids, and 413 replacements are logged and counted.
func newHTTPServer(
	cfg *config.Config,
	health *handlers.HealthHandler,
	analyze *handlers.AnalyzeHandler,
	metrics *appMetrics,
) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+routeHealth, health.Check)
	mux.HandleFunc("POST "+routeAnalyzeText, analyze.AnalyzeText)
	mux.HandleFunc("POST "+routeAnalyzeScreenshot, analyze.AnalyzeScreenshot)

	if metrics.handler != nil {
		mux.Handle("GET "+routeMetrics, metrics.handler)
	}

	var handler http.Handler = mux
	handler = middleware.Recover(slog.Default())(handler)
	handler = middleware.MaxBody(cfg.MaxRequestBodyBytes, metrics.api)(handler)
	handler = middleware.Metrics(metrics.http, routeHealth, routeMetrics, routeAnalyzeText, routeAnalyzeScreenshot)(handler)
	handler = middleware.Logging(slog.Default())(handler)
	handler = otelhttp.NewHandler(handler, "trustify-api",
		// Skip tracing for health checks and scrapes to reduce noise.
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != routeHealth && r.URL.Path != routeMetrics
		}),
	)
	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 30 * time.Second
		writeTimeout = 60 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled (e.g. signal) or the server fails.
// Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr <- fmt.Errorf("server: %w", err)
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func (a *App) shutdownObservability(ctx context.Context) error {
	var first error

	if err := observability.ShutdownTracerProvider(ctx, a.tracerProvider); err != nil {
		first = err
	}

	if a.meterProvider != nil {
		if err := a.meterProvider.Shutdown(ctx); err != nil {
			if first == nil {
				first = fmt.Errorf("meter provider shutdown: %w", err)
			} else {
				slog.Error("shutdown meter provider", "error", err)
			}
		}
	}

	return first
}

// Shutdown stops the server, then flushes observability. Call after Run returns.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := a.shutdownObservability(ctx)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
