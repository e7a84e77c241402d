package contentsafety

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"no key", Options{Endpoint: "https://x.cognitiveservices.azure.com"}},
		{"no endpoint", Options{Key: "k"}},
		{"blank", Options{Endpoint: "  ", Key: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.opts)
			require.ErrorIs(t, err, ErrMissingCredentials)
		})
	}
}

func TestClient_AnalyzeText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/contentsafety/text:analyze", r.URL.Path)
		assert.Equal(t, DefaultAPIVersion, r.URL.Query().Get("api-version"))
		assert.Equal(t, "secret", r.Header.Get("Ocp-Apim-Subscription-Key"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "you are awful", body["text"])
		assert.Equal(t, OutputFourSeverityLevels, body["outputType"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"blocklistsMatch":[],"categoriesAnalysis":[
			{"category":"Hate","severity":2},
			{"category":"SelfHarm","severity":0},
			{"category":"Sexual","severity":0},
			{"category":"Violence","severity":null}]}`))
	}))
	defer server.Close()

	client, err := NewClient(Options{Endpoint: server.URL + "/", Key: "secret"})
	require.NoError(t, err)

	result, err := client.AnalyzeText(context.Background(), "you are awful")
	require.NoError(t, err)

	require.Len(t, result.CategoriesAnalysis, 4)
	assert.Equal(t, "Hate", result.CategoriesAnalysis[0].Category)
	require.NotNil(t, result.CategoriesAnalysis[0].Severity)
	assert.Equal(t, 2, *result.CategoriesAnalysis[0].Severity)
	assert.Nil(t, result.CategoriesAnalysis[3].Severity)
}

func TestClient_AnalyzeText_Errors(t *testing.T) {
	t.Run("azure error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"401","message":"Access denied due to invalid subscription key."}}`))
		}))
		defer server.Close()

		client, err := NewClient(Options{Endpoint: server.URL, Key: "bad"})
		require.NoError(t, err)

		_, err = client.AnalyzeText(context.Background(), "hello")

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		assert.Contains(t, err.Error(), "invalid subscription key")
		assert.Equal(t, "unauthorized", ErrorReason(err))
	})

	t.Run("throttled requests are retried", func(t *testing.T) {
		var calls atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)

				return
			}

			_, _ = w.Write([]byte(`{"categoriesAnalysis":[]}`))
		}))
		defer server.Close()

		client, err := NewClient(Options{Endpoint: server.URL, Key: "k", RetryMax: 2})
		require.NoError(t, err)

		client.httpClient.RetryWaitMin = time.Millisecond
		client.httpClient.RetryWaitMax = 5 * time.Millisecond

		result, err := client.AnalyzeText(context.Background(), "hello")
		require.NoError(t, err)
		assert.Empty(t, result.CategoriesAnalysis)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("text too long", func(t *testing.T) {
		client, err := NewClient(Options{Endpoint: "http://127.0.0.1:1", Key: "k"})
		require.NoError(t, err)

		_, err = client.AnalyzeText(context.Background(), strings.Repeat("a", MaxTextLength+1))
		require.ErrorIs(t, err, ErrTextTooLong)
		assert.Equal(t, "bad_request", ErrorReason(err))
	})

	t.Run("cancelled context stops at the rate limiter", func(t *testing.T) {
		client, err := NewClient(Options{Endpoint: "http://127.0.0.1:1", Key: "k", RateLimit: 0.001})
		require.NoError(t, err)

		// Use up the single burst token.
		require.True(t, client.limiter.Allow())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err = client.AnalyzeText(ctx, "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limiter")
	})
}

func TestErrorReason(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"forbidden", &APIError{Status: http.StatusForbidden}, "unauthorized"},
		{"throttled", &APIError{Status: http.StatusTooManyRequests}, "rate_limited"},
		{"server", &APIError{Status: http.StatusServiceUnavailable}, "upstream"},
		{"bad request", &APIError{Status: http.StatusBadRequest}, "bad_request"},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"other", assert.AnError, "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ErrorReason(tt.err))
		})
	}
}
