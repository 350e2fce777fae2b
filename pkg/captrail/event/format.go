package event

import (
	"fmt"
	"strings"
)

// TimestampLayout is the wire timestamp format: local time with
// millisecond precision.
const TimestampLayout = "2006-01-02 15:04:05.000"

// Format renders the event as its log line, newline terminated.
// One line per event:
//
//	[<ts>] KEY <DOWN|UP> VK:0x<4-hex> SC:0x<4-hex>[ ALT][ CTRL][ SHIFT][ WIN]
//	[<ts>] MOUSE <CLICK|MOVE|WHEEL> X:<int> Y:<int> BTN:[ LEFT][ RIGHT][ MIDDLE] WHL:<int>
//	[<ts>] WINDOW TITLE:'<title>' PROCESS:'<process>' PID:<uint>
//	[<ts>] ERROR <message>
//
// Unknown kinds render as the empty string.
func (e Event) Format() string {
	ts := e.Time.Format(TimestampLayout)

	switch e.Kind {
	case KindKeyPress, KindKeyRelease:
		action := "DOWN"
		if e.Kind == KindKeyRelease {
			action = "UP"
		}
		var mods strings.Builder
		if e.Key.Alt {
			mods.WriteString(" ALT")
		}
		if e.Key.Ctrl {
			mods.WriteString(" CTRL")
		}
		if e.Key.Shift {
			mods.WriteString(" SHIFT")
		}
		if e.Key.Win {
			mods.WriteString(" WIN")
		}
		return fmt.Sprintf("[%s] KEY %s VK:0x%04X SC:0x%04X%s\n",
			ts, action, e.Key.VirtualKey, e.Key.ScanCode, mods.String())

	case KindPointerClick, KindPointerMove, KindPointerWheel:
		action := "CLICK"
		switch e.Kind {
		case KindPointerMove:
			action = "MOVE"
		case KindPointerWheel:
			action = "WHEEL"
		}
		var btns strings.Builder
		if e.Pointer.Left {
			btns.WriteString(" LEFT")
		}
		if e.Pointer.Right {
			btns.WriteString(" RIGHT")
		}
		if e.Pointer.Middle {
			btns.WriteString(" MIDDLE")
		}
		return fmt.Sprintf("[%s] MOUSE %s X:%d Y:%d BTN:%s WHL:%d\n",
			ts, action, e.Pointer.X, e.Pointer.Y, btns.String(), e.Pointer.WheelDelta)

	case KindWindowChange:
		return fmt.Sprintf("[%s] WINDOW TITLE:'%s' PROCESS:'%s' PID:%d\n",
			ts, e.Window.Title, e.Window.Process, e.Window.PID)

	case KindError:
		return fmt.Sprintf("[%s] ERROR %s\n", ts, e.Fault.Message)
	}

	return ""
}
