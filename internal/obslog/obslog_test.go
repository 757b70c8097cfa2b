package obslog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/pyanalyze/internal/obslog"
)

func TestTracingHandlerInjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := obslog.NewTracingHandler(inner, "pyanalyze", "test", obslog.ModeLSP)
	logger := slog.New(handler)

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "test message")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "pyanalyze", record["service"])
	assert.Equal(t, "test", record["env"])
	assert.Equal(t, "lsp", record["mode"])
}

func TestTracingHandlerNoTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := obslog.NewTracingHandler(inner, "pyanalyze", "", obslog.ModeMCP)
	logger := slog.New(handler)

	logger.InfoContext(context.Background(), "no span")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	_, hasTraceID := record["trace_id"]
	assert.False(t, hasTraceID)
	assert.Equal(t, "pyanalyze", record["service"])
	assert.Equal(t, "mcp", record["mode"])
	_, hasEnv := record["env"]
	assert.False(t, hasEnv)
}

func TestNewBuildsJSONLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := obslog.New(&buf, obslog.Options{
		Service: "pyanalyze",
		Mode:    obslog.ModeServe,
		Level:   slog.LevelInfo,
		JSON:    true,
	})

	logger.Info("steady state reached")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "serve", record["mode"])
}
