//go:build windows

package input

import (
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procSetCursorPos    = user32.NewProc("SetCursorPos")
	procMouseEvent      = user32.NewProc("mouse_event")
	procKeybdEvent      = user32.NewProc("keybd_event")
	procLockWorkStation = user32.NewProc("LockWorkStation")
	procMessageBoxW     = user32.NewProc("MessageBoxW")
)

const (
	mouseEventLeftDown   = 0x0002
	mouseEventLeftUp     = 0x0004
	mouseEventRightDown  = 0x0008
	mouseEventRightUp    = 0x0010
	mouseEventMiddleDown = 0x0020
	mouseEventMiddleUp   = 0x0040
	mouseEventWheel      = 0x0800

	keyEventExtendedKey = 0x0001
	keyEventKeyUp       = 0x0002

	vkShift = 0x10

	mbOK              = 0x00000000
	mbIconInformation = 0x00000040
	mbSetForeground   = 0x00010000
	mbSystemModal     = 0x00001000
)

// WinSimulator injects input through the legacy user32 event APIs, matching
// what the desktop side of the product has always used.
type WinSimulator struct{}

// NewPlatformSimulator returns the input simulator for this OS.
func NewPlatformSimulator() InputSimulator {
	return &WinSimulator{}
}

func (s *WinSimulator) MoveMouse(x, y int) {
	procSetCursorPos.Call(uintptr(x), uintptr(y))
}

func buttonFlags(button MouseButton) (down, up uintptr) {
	switch button {
	case ButtonMiddle:
		return mouseEventMiddleDown, mouseEventMiddleUp
	case ButtonRight:
		return mouseEventRightDown, mouseEventRightUp
	default:
		return mouseEventLeftDown, mouseEventLeftUp
	}
}

func (s *WinSimulator) MouseClick(x, y int, button MouseButton, doubleClick bool) {
	procSetCursorPos.Call(uintptr(x), uintptr(y))
	down, up := buttonFlags(button)
	procMouseEvent.Call(down, 0, 0, 0, 0)
	procMouseEvent.Call(up, 0, 0, 0, 0)
	if doubleClick {
		time.Sleep(50 * time.Millisecond)
		procMouseEvent.Call(down, 0, 0, 0, 0)
		procMouseEvent.Call(up, 0, 0, 0, 0)
	}
}

func (s *WinSimulator) MouseDown(button MouseButton) {
	down, _ := buttonFlags(button)
	procMouseEvent.Call(down, 0, 0, 0, 0)
}

func (s *WinSimulator) MouseUp(button MouseButton) {
	_, up := buttonFlags(button)
	procMouseEvent.Call(up, 0, 0, 0, 0)
}

func (s *WinSimulator) MouseScroll(delta int) {
	// Wheel delta is 120 per notch
	procMouseEvent.Call(mouseEventWheel, 0, 0, uintptr(int32(delta*120)), 0)
}

func keyFlags(extended bool, up bool) uintptr {
	var flags uintptr
	if extended {
		flags |= keyEventExtendedKey
	}
	if up {
		flags |= keyEventKeyUp
	}
	return flags
}

func (s *WinSimulator) KeyDown(vkCode int, extended bool) {
	procKeybdEvent.Call(uintptr(vkCode), 0, keyFlags(extended, false), 0)
}

func (s *WinSimulator) KeyUp(vkCode int, extended bool) {
	procKeybdEvent.Call(uintptr(vkCode), 0, keyFlags(extended, true), 0)
}

func (s *WinSimulator) KeyPress(vkCode int, extended bool) {
	s.KeyDown(vkCode, extended)
	s.KeyUp(vkCode, extended)
}

// TypeText replays a string as individual keystrokes, wrapping shifted
// characters in a shift press/release pair.
func (s *WinSimulator) TypeText(text string) {
	for _, ev := range eventsForText(text) {
		if ev.shift {
			procKeybdEvent.Call(vkShift, 0, 0, 0)
		}
		procKeybdEvent.Call(uintptr(ev.vk), 0, 0, 0)
		procKeybdEvent.Call(uintptr(ev.vk), 0, keyEventKeyUp, 0)
		if ev.shift {
			procKeybdEvent.Call(vkShift, 0, keyEventKeyUp, 0)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (s *WinSimulator) LockWorkstation() {
	procLockWorkStation.Call()
}

// ShowMessageBox pops a system-modal box so it appears above the kiosk UI.
// Runs on its own goroutine because MessageBoxW blocks until dismissed.
func (s *WinSimulator) ShowMessageBox(title, message string) {
	go func() {
		titlePtr, err := windows.UTF16PtrFromString(title)
		if err != nil {
			return
		}
		messagePtr, err := windows.UTF16PtrFromString(message)
		if err != nil {
			return
		}
		procMessageBoxW.Call(0,
			uintptr(unsafe.Pointer(messagePtr)),
			uintptr(unsafe.Pointer(titlePtr)),
			mbOK|mbIconInformation|mbSetForeground|mbSystemModal)
	}()
}
