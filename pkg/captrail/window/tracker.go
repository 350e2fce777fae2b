// Package window tracks the foreground window and reports transitions.
//
// The tracker deduplicates on the (handle, title) pair: a new handle with the
// same title and a title change within the same window both count as
// transitions, while repeated polls of an unchanged foreground window
// produce nothing.
package window

import (
	"time"

	"github.com/captrail/captrail/pkg/captrail/event"
)

// Observation is a single poll of the foreground window.
type Observation struct {
	// Handle identifies the window to the platform. Zero means no
	// foreground window.
	Handle uintptr

	// Title is the window's current title text, possibly empty.
	Title string

	// Process is the base name of the owning executable, or "unknown"
	// when the platform refused to disclose it.
	Process string

	// PID is the owning process ID.
	PID uint32

	// Visible reports whether the window is actually shown.
	Visible bool
}

// Validator decides whether an observation is worth recording. It runs
// after the built-in checks (non-zero handle, visible).
type Validator func(Observation) bool

// Tracker remembers the last reported foreground window and emits a
// window-change event when the observed one differs. Not safe for
// concurrent use; the dispatcher polls it under its own lock.
type Tracker struct {
	validate Validator

	hasCurrent bool
	handle     uintptr
	title      string
}

// NewTracker creates a tracker. validate may be nil.
func NewTracker(validate Validator) *Tracker {
	return &Tracker{validate: validate}
}

// Observe compares obs against the last reported window. When the
// (handle, title) pair changed it records the new pair and returns the
// window-change event to enqueue. Observations with a zero handle or an
// invisible window are ignored without disturbing the remembered state,
// so a transient empty poll does not cause a duplicate report when the
// same window comes back.
func (t *Tracker) Observe(at time.Time, obs Observation) (event.Event, bool) {
	if obs.Handle == 0 || !obs.Visible {
		return event.Event{}, false
	}
	if t.validate != nil && !t.validate(obs) {
		return event.Event{}, false
	}
	if t.hasCurrent && t.handle == obs.Handle && t.title == obs.Title {
		return event.Event{}, false
	}

	t.hasCurrent = true
	t.handle = obs.Handle
	t.title = obs.Title

	process := obs.Process
	if process == "" {
		process = "unknown"
	}

	return event.NewWindowChange(at, event.Window{
		Title:   obs.Title,
		Process: process,
		PID:     obs.PID,
		Handle:  obs.Handle,
	}), true
}

// Current returns the last reported (handle, title) pair.
func (t *Tracker) Current() (uintptr, string, bool) {
	return t.handle, t.title, t.hasCurrent
}

// Reset forgets the remembered window so the next valid observation is
// reported again. Used when capture restarts.
func (t *Tracker) Reset() {
	t.hasCurrent = false
	t.handle = 0
	t.title = ""
}
