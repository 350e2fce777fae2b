//go:build windows

package source

import (
	"fmt"
	"path/filepath"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/captrail/captrail/pkg/captrail/event"
	"github.com/captrail/captrail/pkg/captrail/window"
)

// Windows API constants
const (
	whKeyboardLL = 13
	whMouseLL    = 14

	wmKeyDown    = 0x0100
	wmKeyUp      = 0x0101
	wmSysKeyDown = 0x0104
	wmSysKeyUp   = 0x0105

	wmMouseMove   = 0x0200
	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmMouseWheel  = 0x020A

	llkhfExtended = 0x01
	llkhfInjected = 0x10
	llmhfInjected = 0x01

	vkShift   = 0x10
	vkControl = 0x11
	vkMenu    = 0x12
	vkLWin    = 0x5B
	vkRWin    = 0x5C

	keyDownMask = 0x8000

	pmRemove = 0x0001
)

var (
	user32 = syscall.NewLazyDLL("user32.dll")

	procSetWindowsHookEx         = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx      = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx           = user32.NewProc("CallNextHookEx")
	procPeekMessage              = user32.NewProc("PeekMessageW")
	procTranslateMessage         = user32.NewProc("TranslateMessage")
	procDispatchMessage          = user32.NewProc("DispatchMessageW")
	procGetAsyncKeyState         = user32.NewProc("GetAsyncKeyState")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowText            = user32.NewProc("GetWindowTextW")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procGetWindowThreadProcessID = user32.NewProc("GetWindowThreadProcessId")
)

type point struct {
	X, Y int32
}

type msg struct {
	Hwnd    syscall.Handle
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

type kbdllHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msllHookStruct struct {
	Pt          point
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

// Hook captures keyboard and mouse input through low-level Windows hooks.
//
// Hook callbacks are delivered through the message loop of the thread that
// installed them, so Start and Pump must run on the same OS thread; callers
// lock the dispatcher goroutine to its thread before starting.
type Hook struct {
	mu         sync.Mutex
	sink       Sink
	keyHook    syscall.Handle
	mouse      syscall.Handle
	running    bool
	heldLeft   bool
	heldRight  bool
	heldMiddle bool
}

// NewHook creates an uninstalled input hook.
func NewHook() (*Hook, error) {
	return &Hook{}, nil
}

// Start installs the low-level keyboard and mouse hooks.
func (h *Hook) Start(sink Sink) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return fmt.Errorf("input hook already running")
	}
	h.sink = sink

	keyHook, _, err := procSetWindowsHookEx.Call(
		whKeyboardLL,
		syscall.NewCallback(h.keyboardProc),
		0, // hInstance
		0, // all threads
	)
	if keyHook == 0 {
		return fmt.Errorf("install keyboard hook: %w", err)
	}
	h.keyHook = syscall.Handle(keyHook)

	mouseHook, _, err := procSetWindowsHookEx.Call(
		whMouseLL,
		syscall.NewCallback(h.mouseProc),
		0,
		0,
	)
	if mouseHook == 0 {
		procUnhookWindowsHookEx.Call(uintptr(h.keyHook))
		h.keyHook = 0
		return fmt.Errorf("install mouse hook: %w", err)
	}
	h.mouse = syscall.Handle(mouseHook)

	h.running = true
	return nil
}

// Pump drains the thread's pending messages so hook callbacks fire.
// Non-blocking: returns as soon as the message queue is empty.
func (h *Hook) Pump() {
	var m msg
	for {
		ret, _, _ := procPeekMessage.Call(
			uintptr(unsafe.Pointer(&m)),
			0, 0, 0,
			pmRemove,
		)
		if int32(ret) == 0 {
			return
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessage.Call(uintptr(unsafe.Pointer(&m)))
	}
}

// Stop removes the hooks.
func (h *Hook) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return nil
	}
	h.running = false

	if h.keyHook != 0 {
		procUnhookWindowsHookEx.Call(uintptr(h.keyHook))
		h.keyHook = 0
	}
	if h.mouse != 0 {
		procUnhookWindowsHookEx.Call(uintptr(h.mouse))
		h.mouse = 0
	}
	h.sink = nil
	return nil
}

// Foreground returns the current foreground window.
func (h *Hook) Foreground() (window.Observation, bool) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return window.Observation{}, false
	}

	visible, _, _ := procIsWindowVisible.Call(hwnd)

	var title [512]uint16
	n, _, _ := procGetWindowText.Call(hwnd, uintptr(unsafe.Pointer(&title[0])), uintptr(len(title)))

	var pid uint32
	procGetWindowThreadProcessID.Call(hwnd, uintptr(unsafe.Pointer(&pid)))

	return window.Observation{
		Handle:  hwnd,
		Title:   syscall.UTF16ToString(title[:n]),
		Process: processName(pid),
		PID:     pid,
		Visible: visible != 0,
	}, true
}

// processName resolves a PID to its executable base name, or "unknown"
// when access is denied.
func processName(pid uint32) string {
	proc, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "unknown"
	}
	defer windows.CloseHandle(proc)

	var buf [windows.MAX_PATH]uint16
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(proc, 0, &buf[0], &size); err != nil {
		return "unknown"
	}
	return filepath.Base(syscall.UTF16ToString(buf[:size]))
}

// asyncDown reports whether the given virtual key is currently held.
func asyncDown(vk int) bool {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return uint16(state)&keyDownMask != 0
}

// modifiers samples the modifier keys at event time.
func modifiers() (alt, ctrl, shift, win bool) {
	return asyncDown(vkMenu),
		asyncDown(vkControl),
		asyncDown(vkShift),
		asyncDown(vkLWin) || asyncDown(vkRWin)
}

// keyboardProc is the WH_KEYBOARD_LL callback.
func (h *Hook) keyboardProc(nCode int32, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 {
		ks := (*kbdllHookStruct)(unsafe.Pointer(lParam))

		var kind event.Kind
		switch uint32(wParam) {
		case wmKeyDown, wmSysKeyDown:
			kind = event.KindKeyPress
		case wmKeyUp, wmSysKeyUp:
			kind = event.KindKeyRelease
		default:
			kind = event.KindKeyPress
		}

		alt, ctrl, shift, win := modifiers()
		h.deliver(event.NewKey(kind, time.Now(), event.Key{
			VirtualKey: ks.VkCode,
			ScanCode:   ks.ScanCode,
			Extended:   ks.Flags&llkhfExtended != 0,
			Injected:   ks.Flags&llkhfInjected != 0,
			Alt:        alt,
			Ctrl:       ctrl,
			Shift:      shift,
			Win:        win,
		}))
	}

	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

// mouseProc is the WH_MOUSE_LL callback.
func (h *Hook) mouseProc(nCode int32, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 {
		ms := (*msllHookStruct)(unsafe.Pointer(lParam))

		var kind event.Kind
		var wheel int16
		emit := true

		switch uint32(wParam) {
		case wmMouseMove:
			kind = event.KindPointerMove
		case wmLButtonDown:
			kind = event.KindPointerClick
			h.heldLeft = true
		case wmLButtonUp:
			h.heldLeft = false
			emit = false
		case wmRButtonDown:
			kind = event.KindPointerClick
			h.heldRight = true
		case wmRButtonUp:
			h.heldRight = false
			emit = false
		case wmMButtonDown:
			kind = event.KindPointerClick
			h.heldMiddle = true
		case wmMButtonUp:
			h.heldMiddle = false
			emit = false
		case wmMouseWheel:
			kind = event.KindPointerWheel
			wheel = int16(ms.MouseData >> 16)
		default:
			emit = false
		}

		if emit {
			h.deliver(event.NewPointer(kind, time.Now(), event.Pointer{
				X:          ms.Pt.X,
				Y:          ms.Pt.Y,
				Left:       h.heldLeft,
				Right:      h.heldRight,
				Middle:     h.heldMiddle,
				WheelDelta: wheel,
				Injected:   ms.Flags&llmhfInjected != 0,
			}))
		}
	}

	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

// deliver hands an event to the sink if the pipeline is accepting.
func (h *Hook) deliver(evt event.Event) {
	h.mu.Lock()
	sink := h.sink
	h.mu.Unlock()

	if sink == nil || !sink.IsActive() {
		return
	}
	sink.OnRawEvent(evt)
}
