package source_test

import (
	"testing"
	"time"

	"github.com/captrail/captrail/pkg/captrail/event"
	"github.com/captrail/captrail/pkg/captrail/source"
	"github.com/captrail/captrail/pkg/captrail/window"
)

// recordSink accepts or rejects events on demand.
type recordSink struct {
	events []event.Event
	reject bool
	active bool
}

func (s *recordSink) OnRawEvent(evt event.Event) bool {
	if s.reject {
		return false
	}
	s.events = append(s.events, evt)
	return true
}

func (s *recordSink) IsActive() bool { return s.active }

func keyEvent(vk uint32) event.Event {
	return event.NewKey(event.KindKeyPress, time.Now(), event.Key{VirtualKey: vk})
}

func TestReplayDeliversOnPump(t *testing.T) {
	sink := &recordSink{active: true}
	r := source.NewReplay()
	if err := r.Start(sink); err != nil {
		t.Fatal(err)
	}

	r.Emit(keyEvent(65))
	r.Emit(keyEvent(66))
	if len(sink.events) != 0 {
		t.Fatal("events must not be delivered before Pump")
	}

	r.Pump()
	if len(sink.events) != 2 {
		t.Fatalf("delivered %d events, want 2", len(sink.events))
	}
	if sink.events[0].Key.VirtualKey != 65 || sink.events[1].Key.VirtualKey != 66 {
		t.Error("delivery order must match emit order")
	}

	r.Pump()
	if len(sink.events) != 2 {
		t.Error("second pump must not redeliver")
	}
}

func TestReplayCountsRejections(t *testing.T) {
	sink := &recordSink{active: true, reject: true}
	r := source.NewReplay()
	r.Start(sink)

	r.Emit(keyEvent(65))
	r.Pump()

	if r.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", r.Dropped())
	}
}

func TestReplayForeground(t *testing.T) {
	r := source.NewReplay()

	if _, ok := r.Foreground(); ok {
		t.Error("no foreground window before SetForeground")
	}

	obs := window.Observation{Handle: 7, Title: "Terminal", Visible: true}
	r.SetForeground(obs)
	got, ok := r.Foreground()
	if !ok || got.Title != "Terminal" {
		t.Errorf("Foreground = (%+v, %v)", got, ok)
	}

	r.ClearForeground()
	if _, ok := r.Foreground(); ok {
		t.Error("ClearForeground must hide the window")
	}
}

func TestReplayStopDiscardsPending(t *testing.T) {
	sink := &recordSink{active: true}
	r := source.NewReplay()
	r.Start(sink)
	r.Emit(keyEvent(65))
	r.Stop()
	r.Pump()

	if len(sink.events) != 0 {
		t.Error("events emitted before Stop must not be delivered after")
	}
}
