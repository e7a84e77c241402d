package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestTraceContextHandler(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(&buf, "info")

	t.Run("adds request id", func(t *testing.T) {
		buf.Reset()

		ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")
		logger.InfoContext(ctx, "hello")

		assert.Contains(t, buf.String(), "request_id=req-123")
		assert.NotContains(t, buf.String(), "trace_id")
	})

	t.Run("adds trace and span ids", func(t *testing.T) {
		buf.Reset()

		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{0x01, 0x02},
			SpanID:  trace.SpanID{0x03},
		})
		ctx := trace.ContextWithSpanContext(context.Background(), sc)
		logger.With("component", "test").InfoContext(ctx, "hello")

		assert.Contains(t, buf.String(), "trace_id="+sc.TraceID().String())
		assert.Contains(t, buf.String(), "span_id="+sc.SpanID().String())
		assert.Contains(t, buf.String(), "component=test")
	})

	t.Run("respects level", func(t *testing.T) {
		buf.Reset()

		logger.DebugContext(context.Background(), "hidden")

		assert.Empty(t, buf.String())
	})
}
