package window_test

import (
	"strings"
	"testing"
	"time"

	"github.com/captrail/captrail/pkg/captrail/event"
	"github.com/captrail/captrail/pkg/captrail/window"
)

var pollTime = time.Date(2024, 3, 17, 9, 30, 15, 0, time.Local)

func obs(handle uintptr, title string) window.Observation {
	return window.Observation{
		Handle:  handle,
		Title:   title,
		Process: "editor.exe",
		PID:     4242,
		Visible: true,
	}
}

func TestFirstObservationEmits(t *testing.T) {
	tr := window.NewTracker(nil)

	evt, changed := tr.Observe(pollTime, obs(100, "main.go"))
	if !changed {
		t.Fatal("first valid observation must be reported")
	}
	if evt.Kind != event.KindWindowChange {
		t.Errorf("kind = %v, want window change", evt.Kind)
	}
	if evt.Window.Title != "main.go" || evt.Window.PID != 4242 {
		t.Errorf("unexpected payload: %+v", evt.Window)
	}
}

func TestUnchangedWindowIsSilent(t *testing.T) {
	tr := window.NewTracker(nil)
	tr.Observe(pollTime, obs(100, "main.go"))

	for i := 0; i < 5; i++ {
		if _, changed := tr.Observe(pollTime, obs(100, "main.go")); changed {
			t.Fatal("repeated poll of the same window must not report")
		}
	}
}

func TestTitleChangeSameHandleEmits(t *testing.T) {
	tr := window.NewTracker(nil)
	tr.Observe(pollTime, obs(100, "main.go"))

	evt, changed := tr.Observe(pollTime, obs(100, "main.go (modified)"))
	if !changed {
		t.Fatal("title change within the same window must be reported")
	}
	if evt.Window.Title != "main.go (modified)" {
		t.Errorf("title = %q", evt.Window.Title)
	}
}

func TestHandleChangeSameTitleEmits(t *testing.T) {
	tr := window.NewTracker(nil)
	tr.Observe(pollTime, obs(100, "Untitled"))

	if _, changed := tr.Observe(pollTime, obs(200, "Untitled")); !changed {
		t.Fatal("a different window with the same title must be reported")
	}
}

func TestInvalidObservationsIgnored(t *testing.T) {
	tr := window.NewTracker(nil)
	tr.Observe(pollTime, obs(100, "main.go"))

	if _, changed := tr.Observe(pollTime, window.Observation{}); changed {
		t.Error("zero handle must be ignored")
	}

	hidden := obs(300, "hidden")
	hidden.Visible = false
	if _, changed := tr.Observe(pollTime, hidden); changed {
		t.Error("invisible window must be ignored")
	}

	// The remembered window survives invalid polls: the same window
	// coming back is not re-reported.
	if _, changed := tr.Observe(pollTime, obs(100, "main.go")); changed {
		t.Error("window must still be remembered after invalid polls")
	}
}

func TestValidatorFilters(t *testing.T) {
	tr := window.NewTracker(func(o window.Observation) bool {
		return !strings.Contains(o.Title, "secret")
	})

	if _, changed := tr.Observe(pollTime, obs(100, "secret notes")); changed {
		t.Error("validator rejection must not report")
	}
	if _, changed := tr.Observe(pollTime, obs(100, "public notes")); !changed {
		t.Error("validator acceptance must report")
	}
}

func TestUnknownProcessFallback(t *testing.T) {
	tr := window.NewTracker(nil)

	o := obs(100, "main.go")
	o.Process = ""
	evt, changed := tr.Observe(pollTime, o)
	if !changed {
		t.Fatal("expected report")
	}
	if evt.Window.Process != "unknown" {
		t.Errorf("process = %q, want unknown", evt.Window.Process)
	}
}

func TestReset(t *testing.T) {
	tr := window.NewTracker(nil)
	tr.Observe(pollTime, obs(100, "main.go"))
	tr.Reset()

	if _, _, ok := tr.Current(); ok {
		t.Error("Reset must forget the current window")
	}
	if _, changed := tr.Observe(pollTime, obs(100, "main.go")); !changed {
		t.Error("same window must be reported again after Reset")
	}
}
