package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustify/backend/internal/analyzer"
	"github.com/trustify/backend/internal/api/handlers"
	"github.com/trustify/backend/internal/config"
	"github.com/trustify/backend/internal/models"
	"github.com/trustify/backend/internal/observability"
)

type staticProvider struct{}

func (staticProvider) AnalyzeText(context.Context, string) (*models.ProviderAnalysis, error) {
	return &models.ProviderAnalysis{
		Categories:       map[string]models.RiskLevel{"Hate": models.RiskLow, "Violence": models.RiskSafe},
		ConfidenceScores: map[string]float64{"Hate": 0, "Violence": 0},
		RiskLevel:        models.RiskLow,
	}, nil
}

func newTestServer(t *testing.T, maxBody int64, withMetrics bool) *httptest.Server {
	t.Helper()

	metrics := &appMetrics{}

	if withMetrics {
		mp, handler, meter, err := observability.NewMeterProvider(context.Background(), observability.MeterProviderConfig{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

		metrics, err = newAppMetrics(meter, handler)
		require.NoError(t, err)
	}

	a, err := analyzer.New(analyzer.Params{Provider: staticProvider{}, CacheSize: 10, CacheTTL: time.Minute})
	require.NoError(t, err)

	srv := newHTTPServer(
		&config.Config{Port: "0", MaxRequestBodyBytes: maxBody},
		handlers.NewHealthHandler(),
		handlers.NewAnalyzeHandler(a, nil, metrics.analysis),
		metrics,
	)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	return ts
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, 1<<20, false)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestServer_AnalyzeText(t *testing.T) {
	ts := newTestServer(t, 1<<20, false)

	resp, err := http.Post(ts.URL+"/analyze/text", "application/json", bytes.NewReader([]byte(`{"text":"you are a loser"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "text", body["input_kind"])
	assert.Equal(t, true, body["is_harmful"])
	assert.Equal(t, "Low", body["risk_level"])
	assert.Equal(t, "Potentially harmful content detected in categories: Hate (Low)", body["analysis_summary"])
	assert.InDelta(t, 15, body["text_length"], 0)
}

func TestServer_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t, 16, false)

	resp, err := http.Post(ts.URL+"/analyze/text", "application/json",
		bytes.NewReader([]byte(`{"text":"this body is longer than sixteen bytes"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestServer_UnknownRouteAndMethod(t *testing.T) {
	ts := newTestServer(t, 1<<20, false)

	resp, err := http.Get(ts.URL + "/analyze/text")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "no /metrics without a meter provider")
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t, 1<<20, true)

	resp, err := http.Post(ts.URL+"/analyze/text", "application/json", bytes.NewReader([]byte(`{"text":"hello"}`)))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "trustify_analyses_total")
	assert.Contains(t, string(body), "trustify_http_requests_total")
}
