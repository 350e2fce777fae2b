package source

import (
	"sync"

	"github.com/captrail/captrail/pkg/captrail/event"
	"github.com/captrail/captrail/pkg/captrail/window"
)

// Replay is a scriptable source for tests and demos. Events queued with
// Emit are delivered to the sink on the next Pump, mirroring how the
// platform hook hands events over during the dispatcher tick.
type Replay struct {
	mu         sync.Mutex
	sink       Sink
	pending    []event.Event
	foreground window.Observation
	hasWindow  bool
	dropped    int
}

// NewReplay creates an unattached replay source.
func NewReplay() *Replay {
	return &Replay{}
}

// Start implements Source.
func (r *Replay) Start(sink Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
	return nil
}

// Emit queues an event for the next Pump.
func (r *Replay) Emit(evt event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, evt)
}

// SetForeground sets what Foreground reports.
func (r *Replay) SetForeground(obs window.Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.foreground = obs
	r.hasWindow = true
}

// ClearForeground makes Foreground report no window.
func (r *Replay) ClearForeground() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hasWindow = false
}

// Pump implements Source: it delivers every queued event to the sink.
func (r *Replay) Pump() {
	r.mu.Lock()
	sink := r.sink
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	if sink == nil {
		return
	}
	for _, evt := range pending {
		if !sink.OnRawEvent(evt) {
			r.mu.Lock()
			r.dropped++
			r.mu.Unlock()
		}
	}
}

// Foreground implements Source.
func (r *Replay) Foreground() (window.Observation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.foreground, r.hasWindow
}

// Dropped returns how many emitted events the sink rejected.
func (r *Replay) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Stop implements Source.
func (r *Replay) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = nil
	r.pending = nil
	return nil
}
