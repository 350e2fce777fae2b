package event

// Filters select which events enter the queue. The decision is made once,
// at enqueue time, so statically uninteresting events are never buffered.
type Filters struct {
	CaptureKeyboard      bool
	CaptureMouse         bool
	CaptureWindowChanges bool
	IgnoreInjected       bool
}

// DefaultFilters captures everything, including injected input.
func DefaultFilters() Filters {
	return Filters{
		CaptureKeyboard:      true,
		CaptureMouse:         true,
		CaptureWindowChanges: true,
		IgnoreInjected:       false,
	}
}

// ShouldProcess reports whether evt passes the filters. It is a pure
// predicate: the result depends only on the filters and the event, never on
// call order. Error events always pass.
func (f Filters) ShouldProcess(evt Event) bool {
	switch evt.Kind {
	case KindKeyPress, KindKeyRelease:
		if !f.CaptureKeyboard {
			return false
		}
		return !(f.IgnoreInjected && evt.Key.Injected)

	case KindPointerClick, KindPointerMove, KindPointerWheel:
		if !f.CaptureMouse {
			return false
		}
		return !(f.IgnoreInjected && evt.Pointer.Injected)

	case KindWindowChange:
		return f.CaptureWindowChanges

	case KindError:
		return true

	default:
		return false
	}
}
