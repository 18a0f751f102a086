// Package input translates logical remote-control commands into OS input
// events. All operations are fire-and-forget: once the process has input
// privileges, injection is assumed to succeed, so nothing here returns errors.
package input

// MouseButton identifies which mouse button an event refers to.
type MouseButton int

const (
	ButtonLeft MouseButton = iota
	ButtonMiddle
	ButtonRight
)

// InputSimulator injects mouse and keyboard events into the OS input queue.
type InputSimulator interface {
	MoveMouse(x, y int)
	MouseClick(x, y int, button MouseButton, doubleClick bool)
	MouseDown(button MouseButton)
	MouseUp(button MouseButton)
	MouseScroll(delta int)
	KeyPress(vkCode int, extended bool)
	KeyDown(vkCode int, extended bool)
	KeyUp(vkCode int, extended bool)
	TypeText(text string)
	LockWorkstation()
	ShowMessageBox(title, message string)
}

// keyEvent is one decomposed keystroke: a virtual-key code plus whether the
// shift modifier must be held around it.
type keyEvent struct {
	vk    uint16
	shift bool
}

// Virtual-key codes for the OEM punctuation keys on a US layout.
const (
	vkOEM1      = 0xBA // ;:
	vkOEMPlus   = 0xBB // =+
	vkOEMComma  = 0xBC // ,<
	vkOEMMinus  = 0xBD // -_
	vkOEMPeriod = 0xBE // .>
	vkOEM2      = 0xBF // /?
	vkOEM3      = 0xC0 // `~
	vkOEM4      = 0xDB // [{
	vkOEM5      = 0xDC // \|
	vkOEM6      = 0xDD // ]}
	vkOEM7      = 0xDE // '"
)

// shiftedSymbols maps characters that live on the shifted layer of another
// key to that key's virtual-key code.
var shiftedSymbols = map[rune]uint16{
	'!': '1', '@': '2', '#': '3', '$': '4', '%': '5',
	'^': '6', '&': '7', '*': '8', '(': '9', ')': '0',
	'_': vkOEMMinus, '+': vkOEMPlus, ':': vkOEM1, '"': vkOEM7,
	'<': vkOEMComma, '>': vkOEMPeriod, '?': vkOEM2, '~': vkOEM3,
	'{': vkOEM4, '}': vkOEM6, '|': vkOEM5,
}

// plainSymbols maps unshifted punctuation to its virtual-key code.
var plainSymbols = map[rune]uint16{
	';': vkOEM1, '=': vkOEMPlus, ',': vkOEMComma, '-': vkOEMMinus,
	'.': vkOEMPeriod, '/': vkOEM2, '`': vkOEM3, '[': vkOEM4,
	'\\': vkOEM5, ']': vkOEM6, '\'': vkOEM7,
}

// keyForRune resolves a character to its virtual-key code and shift state.
// Covers ASCII letters, digits, space, newline/tab and common punctuation.
func keyForRune(r rune) (keyEvent, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return keyEvent{vk: uint16(r - 32)}, true
	case r >= 'A' && r <= 'Z':
		return keyEvent{vk: uint16(r), shift: true}, true
	case r >= '0' && r <= '9':
		return keyEvent{vk: uint16(r)}, true
	case r == ' ':
		return keyEvent{vk: 0x20}, true
	case r == '\n':
		return keyEvent{vk: 0x0D}, true
	case r == '\t':
		return keyEvent{vk: 0x09}, true
	}
	if vk, ok := shiftedSymbols[r]; ok {
		return keyEvent{vk: vk, shift: true}, true
	}
	if vk, ok := plainSymbols[r]; ok {
		return keyEvent{vk: vk}, true
	}
	return keyEvent{}, false
}

// eventsForText decomposes a string into keystrokes. Characters without a
// mapping are silently skipped.
func eventsForText(text string) []keyEvent {
	events := make([]keyEvent, 0, len(text))
	for _, r := range text {
		if ev, ok := keyForRune(r); ok {
			events = append(events, ev)
		}
	}
	return events
}
