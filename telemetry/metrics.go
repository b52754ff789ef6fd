package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MonitorMetrics holds operational metrics using OTEL semantic conventions
type MonitorMetrics struct {
	checks           metric.Int64Counter
	checkDuration    metric.Float64Histogram
	changesConfirmed metric.Int64Counter
	deliveries       metric.Int64Counter
	triggerConflicts metric.Int64Counter
	targetsWatched   metric.Int64Gauge
}

// NewMonitorMetrics creates the monitor's metric instruments
func NewMonitorMetrics() (*MonitorMetrics, error) {
	meter := otel.Meter("shelfwatch.monitor")

	checks, err := meter.Int64Counter(
		"shelfwatch.checks",
		metric.WithDescription("Number of target checks performed"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	checkDuration, err := meter.Float64Histogram(
		"shelfwatch.check.duration",
		metric.WithDescription("Duration of target checks"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	changesConfirmed, err := meter.Int64Counter(
		"shelfwatch.changes.confirmed",
		metric.WithDescription("Number of confirmed page changes"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter(
		"shelfwatch.notifications.deliveries",
		metric.WithDescription("Number of notification delivery attempts"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, err
	}

	triggerConflicts, err := meter.Int64Counter(
		"shelfwatch.trigger.conflicts",
		metric.WithDescription("Manual triggers rejected because a check was in flight"),
		metric.WithUnit("{trigger}"),
	)
	if err != nil {
		return nil, err
	}

	targetsWatched, err := meter.Int64Gauge(
		"shelfwatch.targets.watched",
		metric.WithDescription("Number of targets under watch"),
		metric.WithUnit("{target}"),
	)
	if err != nil {
		return nil, err
	}

	return &MonitorMetrics{
		checks:           checks,
		checkDuration:    checkDuration,
		changesConfirmed: changesConfirmed,
		deliveries:       deliveries,
		triggerConflicts: triggerConflicts,
		targetsWatched:   targetsWatched,
	}, nil
}

// RecordCheck records one completed check with its outcome
func (m *MonitorMetrics) RecordCheck(ctx context.Context, outcome string, kind string) {
	m.checks.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("target.kind", kind),
		),
	)
}

// RecordCheckDuration records check wall time
func (m *MonitorMetrics) RecordCheckDuration(ctx context.Context, durationSeconds float64, outcome string) {
	m.checkDuration.Record(ctx, durationSeconds,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
		),
	)
}

// RecordChangeConfirmed records a confirmed change
func (m *MonitorMetrics) RecordChangeConfirmed(ctx context.Context, kind string) {
	m.changesConfirmed.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("target.kind", kind),
		),
	)
}

// RecordDelivery records one channel delivery attempt
func (m *MonitorMetrics) RecordDelivery(ctx context.Context, channel string, status string) {
	m.deliveries.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("channel", channel),
			attribute.String("status", status),
		),
	)
}

// RecordTriggerConflict records a rejected manual trigger
func (m *MonitorMetrics) RecordTriggerConflict(ctx context.Context) {
	m.triggerConflicts.Add(ctx, 1)
}

// RecordTargetsWatched records the current registry size
func (m *MonitorMetrics) RecordTargetsWatched(ctx context.Context, count int64) {
	m.targetsWatched.Record(ctx, count)
}
