package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(service string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// Convenience methods for the check pipeline

func (l *Logger) LogCheckStart(ctx context.Context, targetID string, manual bool) {
	l.WithContext(ctx).Debug().
		Str("target_id", targetID).
		Bool("manual", manual).
		Msg("check started")
}

func (l *Logger) LogCheckComplete(ctx context.Context, targetID string, outcome string, durationMS float64) {
	l.WithContext(ctx).Info().
		Str("target_id", targetID).
		Str("outcome", outcome).
		Float64("duration_ms", durationMS).
		Msg("check completed")
}

func (l *Logger) LogChangeConfirmed(ctx context.Context, targetID string, added, removed int) {
	l.WithContext(ctx).Info().
		Str("target_id", targetID).
		Int("added", added).
		Int("removed", removed).
		Msg("change confirmed")
}

func (l *Logger) LogProbeError(ctx context.Context, targetID string, kind string, err error) {
	l.WithContext(ctx).Warn().
		Err(err).
		Str("target_id", targetID).
		Str("probe_error_kind", kind).
		Msg("probe failed")
}

func (l *Logger) LogDelivery(ctx context.Context, targetID, channel string, err error) {
	if err != nil {
		l.WithContext(ctx).Error().
			Err(err).
			Str("target_id", targetID).
			Str("channel", channel).
			Msg("notification delivery failed")
		return
	}
	l.WithContext(ctx).Debug().
		Str("target_id", targetID).
		Str("channel", channel).
		Msg("notification delivered")
}
