package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records capture pipeline metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEvent records an event accepted into the queue.
	RecordEvent(ctx context.Context, kind string)

	// RecordDrop records an event dropped anywhere in the pipeline.
	RecordDrop(ctx context.Context, kind, reason string)

	// RecordWrite records a completed write attempt with its duration,
	// size and error status.
	RecordWrite(ctx context.Context, sizeBytes int, duration time.Duration, err error)

	// RecordFlush records a buffer flush with the number of bytes drained.
	RecordFlush(ctx context.Context, sizeBytes int, err error)

	// RecordRotation records a log rotation and the archived file size.
	RecordRotation(ctx context.Context, sizeBytes int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	events       metric.Int64Counter
	drops        metric.Int64Counter
	writes       metric.Int64Counter
	writeLatency metric.Float64Histogram
	writeErrors  metric.Int64Counter
	flushes      metric.Int64Counter
	flushSize    metric.Int64Histogram
	rotations    metric.Int64Counter
	rotationSize metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("captrail")

	events, err := meter.Int64Counter("captrail.events.accepted",
		metric.WithDescription("Number of events accepted into the queue"),
	)
	if err != nil {
		return nil, err
	}

	drops, err := meter.Int64Counter("captrail.events.dropped",
		metric.WithDescription("Number of events dropped by the pipeline"),
	)
	if err != nil {
		return nil, err
	}

	writes, err := meter.Int64Counter("captrail.writes",
		metric.WithDescription("Number of log file write attempts"),
	)
	if err != nil {
		return nil, err
	}

	writeLatency, err := meter.Float64Histogram("captrail.write.latency_ms",
		metric.WithDescription("Log file write latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	writeErrors, err := meter.Int64Counter("captrail.write.errors",
		metric.WithDescription("Number of writes that exhausted their retry budget"),
	)
	if err != nil {
		return nil, err
	}

	flushes, err := meter.Int64Counter("captrail.flushes",
		metric.WithDescription("Number of aggregation buffer flushes"),
	)
	if err != nil {
		return nil, err
	}

	flushSize, err := meter.Int64Histogram("captrail.flush.size_bytes",
		metric.WithDescription("Bytes drained per buffer flush"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	rotations, err := meter.Int64Counter("captrail.rotations",
		metric.WithDescription("Number of log rotations"),
	)
	if err != nil {
		return nil, err
	}

	rotationSize, err := meter.Int64Histogram("captrail.rotation.size_bytes",
		metric.WithDescription("Archived file size per rotation"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		events:       events,
		drops:        drops,
		writes:       writes,
		writeLatency: writeLatency,
		writeErrors:  writeErrors,
		flushes:      flushes,
		flushSize:    flushSize,
		rotations:    rotations,
		rotationSize: rotationSize,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEvent records an accepted event.
func (m *otelMetrics) RecordEvent(ctx context.Context, kind string) {
	m.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
	))
}

// RecordDrop records a dropped event.
func (m *otelMetrics) RecordDrop(ctx context.Context, kind, reason string) {
	m.drops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("reason", reason),
	))
}

// RecordWrite records a write attempt.
func (m *otelMetrics) RecordWrite(ctx context.Context, sizeBytes int, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", err == nil),
	}

	m.writes.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.writeLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.writeErrors.Add(ctx, 1)
	}
}

// RecordFlush records a buffer flush.
func (m *otelMetrics) RecordFlush(ctx context.Context, sizeBytes int, err error) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", err == nil),
	}
	m.flushes.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err == nil {
		m.flushSize.Record(ctx, int64(sizeBytes))
	}
}

// RecordRotation records a log rotation.
func (m *otelMetrics) RecordRotation(ctx context.Context, sizeBytes int64) {
	m.rotations.Add(ctx, 1)
	m.rotationSize.Record(ctx, sizeBytes)
}
