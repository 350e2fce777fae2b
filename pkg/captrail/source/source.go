// Package source abstracts where raw input events come from. The platform
// hook feeds the capture system on Windows; the replay source feeds it in
// tests and demos.
package source

import (
	"errors"

	"github.com/captrail/captrail/pkg/captrail/event"
	"github.com/captrail/captrail/pkg/captrail/window"
)

// ErrUnsupported is returned by NewHook on platforms without input hooks.
var ErrUnsupported = errors.New("platform input hooks not supported")

// Sink receives raw events from a source. The capture system implements
// this; sources call it from their event delivery path, so implementations
// must be non-blocking.
type Sink interface {
	// OnRawEvent offers an event to the pipeline. Returns false when the
	// event was dropped (inactive system or full queue).
	OnRawEvent(evt event.Event) bool

	// IsActive reports whether the pipeline accepts events.
	IsActive() bool
}

// Source produces raw input events and foreground window observations.
type Source interface {
	// Start attaches the source to sink and begins delivery.
	Start(sink Sink) error

	// Pump gives the source a chance to deliver pending events. The
	// dispatcher calls it every tick; implementations must not block.
	Pump()

	// Foreground returns the current foreground window, if any.
	Foreground() (window.Observation, bool)

	// Stop detaches the source. Idempotent.
	Stop() error
}
