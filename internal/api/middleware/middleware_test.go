package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustify/backend/internal/observability"
)

type countingRecorder struct{ n int }

func (c *countingRecorder) RecordRequestBodyTooLarge(context.Context) { c.n++ }

type recordedRequest struct {
	method, route, status string
}

type fakeHTTPMetrics struct{ got []recordedRequest }

func (f *fakeHTTPMetrics) RecordRequest(_ context.Context, method, route, statusClass string, _ time.Duration) {
	f.got = append(f.got, recordedRequest{method, route, statusClass})
}

func readAllHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := io.ReadAll(r.Body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)

		return
	}

	_, _ = w.Write([]byte("read"))
}

func TestMaxBody(t *testing.T) {
	t.Run("body within limit passes through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/analyze/text", strings.NewReader("small"))

		MaxBody(10, nil)(http.HandlerFunc(readAllHandler)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "read", rec.Body.String())
	})

	t.Run("oversized body returns 413 and records", func(t *testing.T) {
		recorder := &countingRecorder{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/analyze/screenshot", bytes.NewReader(make([]byte, 64)))

		MaxBody(10, recorder)(http.HandlerFunc(readAllHandler)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "10 bytes")
		assert.Equal(t, 1, recorder.n)
	})

	t.Run("zero disables the limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/analyze/text", bytes.NewReader(make([]byte, 64)))

		MaxBody(0, nil)(http.HandlerFunc(readAllHandler)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMaxBody_BodyEndsWithPlainEOF(t *testing.T) {
	var lastErr error

	handler := MaxBody(10, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 4)
		for {
			_, err := r.Body.Read(buf)
			if err != nil {
				lastErr = err

				break
			}
		}

		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/text", strings.NewReader("small"))
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, io.EOF, lastErr)
}

func TestRequestID(t *testing.T) {
	var seen any

	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = r.Context().Value(observability.RequestIDKey)
	}))

	t.Run("propagates client id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "abc-123")

		handler.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
		assert.Equal(t, "abc-123", seen)
	})

	t.Run("generates id when missing or too long", func(t *testing.T) {
		for _, id := range []string{"", strings.Repeat("x", 200)} {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("X-Request-ID", id)

			handler.ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-ID")
			assert.Len(t, got, 36)
			assert.Equal(t, got, seen)
		}
	})
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("tea"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/analyze/text", nil))

	line := buf.String()
	assert.Contains(t, line, "msg=request")
	assert.Contains(t, line, "method=POST")
	assert.Contains(t, line, "path=/analyze/text")
	assert.Contains(t, line, "status=418")
	assert.Contains(t, line, "bytes=3")
}

func TestMetrics(t *testing.T) {
	metrics := &fakeHTTPMetrics{}
	handler := Metrics(metrics, "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-admin", nil))

	require.Len(t, metrics.got, 2)
	assert.Equal(t, recordedRequest{"GET", "/health", "2xx"}, metrics.got[0])
	assert.Equal(t, recordedRequest{"GET", "other", "4xx"}, metrics.got[1])
}

func TestMetrics_NilIsPassthrough(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	rec := httptest.NewRecorder()
	Metrics(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecover(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatusToClass(t *testing.T) {
	assert.Equal(t, "2xx", statusToClass(204))
	assert.Equal(t, "3xx", statusToClass(302))
	assert.Equal(t, "4xx", statusToClass(413))
	assert.Equal(t, "5xx", statusToClass(503))
	assert.Equal(t, "1xx", statusToClass(101))
	assert.Equal(t, "unknown", statusToClass(0))
}
