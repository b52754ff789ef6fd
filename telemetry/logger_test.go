package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestLoggerEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{
		Logger: zerolog.New(&buf).With().Str("service", "shelfwatch").Logger().Hook(OTELHook{}),
	}

	logger.LogCheckComplete(context.Background(), "https://shop.example.com/new", "success", 42.5)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output should be JSON")

	assert.Equal(t, "shelfwatch", entry["service"])
	assert.Equal(t, "https://shop.example.com/new", entry["target_id"])
	assert.Equal(t, "success", entry["outcome"])
	assert.Equal(t, "check completed", entry["message"])
}

func TestOTELHookNoSpanIsNoop(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{
		Logger: zerolog.New(&buf).Hook(OTELHook{}),
	}

	logger.WithContext(context.Background()).Info().Msg("no span")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	_, hasTrace := entry["trace_id"]
	assert.False(t, hasTrace, "trace_id should be absent without an active span")
}

func TestOTELHookAddsTraceAndSpanIDs(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	tracer := provider.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "probe")
	defer span.End()

	var buf bytes.Buffer
	logger := &Logger{
		Logger: zerolog.New(&buf).Hook(OTELHook{}),
	}

	logger.WithContext(ctx).Info().Msg("with span")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}
