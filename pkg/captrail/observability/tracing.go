package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the capture pipeline's tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("captrail")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartSessionSpan starts a span for an entire capture session.
	// Returns the context with span and the span itself.
	StartSessionSpan(ctx context.Context, sessionID, logPath string) (context.Context, trace.Span)

	// StartTickSpan starts a span for one dispatcher tick.
	// The tick span should be a child of the session span.
	StartTickSpan(ctx context.Context) (context.Context, trace.Span)

	// StartFlushSpan starts a span for a buffer flush.
	StartFlushSpan(ctx context.Context, sizeBytes int) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartSessionSpan starts a span for an entire capture session.
func (m *otelSpanManager) StartSessionSpan(ctx context.Context, sessionID, logPath string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "captrail.session",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("log.path", logPath),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartTickSpan starts a span for one dispatcher tick.
func (m *otelSpanManager) StartTickSpan(ctx context.Context) (context.Context, trace.Span) {
	return tracer.Start(ctx, "captrail.tick",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartFlushSpan starts a span for a buffer flush.
func (m *otelSpanManager) StartFlushSpan(ctx context.Context, sizeBytes int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "captrail.flush",
		trace.WithAttributes(
			attribute.Int("flush.size_bytes", sizeBytes),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
