// Package event defines the capture event type and its log line format.
//
// An Event is a tagged record: Kind selects which payload field is
// meaningful. Events are immutable once created - constructors copy all
// payload data in, and nothing in the pipeline mutates an event after
// construction.
package event

import "time"

// Kind discriminates the event payload.
type Kind int

const (
	// KindKeyPress is a key going down.
	KindKeyPress Kind = iota

	// KindKeyRelease is a key coming up.
	KindKeyRelease

	// KindPointerClick is a pointer button transition (down or up).
	KindPointerClick

	// KindPointerMove is a pointer position change.
	KindPointerMove

	// KindPointerWheel is a scroll wheel movement.
	KindPointerWheel

	// KindWindowChange is a foreground window transition.
	KindWindowChange

	// KindError is a fault raised inside the capture path itself.
	// Error events bypass all capture filters.
	KindError
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindKeyPress:
		return "key_press"
	case KindKeyRelease:
		return "key_release"
	case KindPointerClick:
		return "pointer_click"
	case KindPointerMove:
		return "pointer_move"
	case KindPointerWheel:
		return "pointer_wheel"
	case KindWindowChange:
		return "window_change"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Key is the payload for KindKeyPress and KindKeyRelease.
type Key struct {
	VirtualKey uint32 // virtual key code
	ScanCode   uint32 // hardware scan code
	Extended   bool   // extended key flag
	Injected   bool   // synthesized by software, not hardware
	Alt        bool
	Ctrl       bool
	Shift      bool
	Win        bool
}

// Pointer is the payload for the three pointer kinds.
type Pointer struct {
	X          int32
	Y          int32
	Left       bool
	Right      bool
	Middle     bool
	WheelDelta int16
	Injected   bool
}

// Window is the payload for KindWindowChange.
type Window struct {
	Title   string
	Process string
	PID     uint32
	Handle  uintptr
}

// Fault is the payload for KindError.
type Fault struct {
	Message string
}

// Event is one captured occurrence. Exactly the payload matching Kind is
// populated; the others are zero values.
type Event struct {
	Kind    Kind
	Time    time.Time
	Key     Key
	Pointer Pointer
	Window  Window
	Fault   Fault
}

// NewKey creates a keyboard event. kind must be KindKeyPress or
// KindKeyRelease.
func NewKey(kind Kind, at time.Time, key Key) Event {
	return Event{Kind: kind, Time: at, Key: key}
}

// NewPointer creates a pointer event. kind must be one of the pointer kinds.
func NewPointer(kind Kind, at time.Time, p Pointer) Event {
	return Event{Kind: kind, Time: at, Pointer: p}
}

// NewWindowChange creates a foreground window transition event.
func NewWindowChange(at time.Time, w Window) Event {
	return Event{Kind: KindWindowChange, Time: at, Window: w}
}

// NewFault creates an error event.
func NewFault(at time.Time, message string) Event {
	return Event{Kind: KindError, Time: at, Fault: Fault{Message: message}}
}

// Injected reports whether the event was synthesized by software rather
// than produced by hardware. Only keyboard and pointer events carry the
// flag; all other kinds report false.
func (e Event) Injected() bool {
	switch e.Kind {
	case KindKeyPress, KindKeyRelease:
		return e.Key.Injected
	case KindPointerClick, KindPointerMove, KindPointerWheel:
		return e.Pointer.Injected
	}
	return false
}
