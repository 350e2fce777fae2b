package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest installs an in-memory span exporter on a local provider
// and rebinds the package tracer to it for the duration of the test.
func setupTracingTest(t *testing.T) *tracetest.SpanRecorder {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	original := tracer
	tracer = provider.Tracer("captrail")

	t.Cleanup(func() {
		tracer = original
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})

	return recorder
}

func TestStartSessionSpan(t *testing.T) {
	recorder := setupTracingTest(t)
	m := NewSpanManager()

	_, span := m.StartSessionSpan(context.Background(), "session-1", "logs/capture.log")
	m.EndSpanWithError(span, nil)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "captrail.session", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)

	attrs := ended[0].Attributes()
	assert.Contains(t, attrs, attribute.String("session.id", "session-1"))
	assert.Contains(t, attrs, attribute.String("log.path", "logs/capture.log"))
}

func TestTickSpanNestsUnderSession(t *testing.T) {
	recorder := setupTracingTest(t)
	m := NewSpanManager()

	ctx, sessionSpan := m.StartSessionSpan(context.Background(), "session-2", "logs/capture.log")
	_, tickSpan := m.StartTickSpan(ctx)
	m.EndSpanWithError(tickSpan, nil)
	m.EndSpanWithError(sessionSpan, nil)

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	// Tick ends first; its parent must be the session span.
	assert.Equal(t, "captrail.tick", ended[0].Name())
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
}

func TestEndSpanWithError(t *testing.T) {
	recorder := setupTracingTest(t)
	m := NewSpanManager()

	_, span := m.StartFlushSpan(context.Background(), 2048)
	m.EndSpanWithError(span, errors.New("write failed"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "captrail.flush", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	require.Len(t, ended[0].Events(), 1) // the recorded error
}

func TestAddSpanEvent(t *testing.T) {
	recorder := setupTracingTest(t)
	m := NewSpanManager()

	ctx, span := m.StartTickSpan(context.Background())
	m.AddSpanEvent(ctx, "window.change", attribute.String("title", "Terminal"))
	m.EndSpanWithError(span, nil)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	events := ended[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "window.change", events[0].Name)
}

func TestNoopSpanManager(t *testing.T) {
	var m SpanManager = NoopSpanManager{}
	ctx := context.Background()

	// Must not panic, must not mutate the context's span.
	ctx2, span := m.StartSessionSpan(ctx, "s", "p")
	assert.Equal(t, ctx, ctx2)
	m.AddSpanEvent(ctx2, "noop")
	m.EndSpanWithError(span, errors.New("ignored"))
}
