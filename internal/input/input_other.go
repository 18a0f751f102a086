//go:build !windows

package input

import "log"

// noopSimulator satisfies InputSimulator on platforms without an input
// injection backend. Commands are logged and dropped so the orchestrator
// stays platform-independent.
type noopSimulator struct{}

// NewPlatformSimulator returns the input simulator for this OS.
func NewPlatformSimulator() InputSimulator {
	log.Println("Input simulation not supported on this platform; commands will be ignored")
	return &noopSimulator{}
}

func (noopSimulator) MoveMouse(x, y int)                                   {}
func (noopSimulator) MouseClick(x, y int, b MouseButton, doubleClick bool) {}
func (noopSimulator) MouseDown(b MouseButton)                              {}
func (noopSimulator) MouseUp(b MouseButton)                                {}
func (noopSimulator) MouseScroll(delta int)                                {}
func (noopSimulator) KeyPress(vkCode int, extended bool)                   {}
func (noopSimulator) KeyDown(vkCode int, extended bool)                    {}
func (noopSimulator) KeyUp(vkCode int, extended bool)                      {}
func (noopSimulator) TypeText(text string)                                 {}
func (noopSimulator) LockWorkstation()                                     {}
func (noopSimulator) ShowMessageBox(title, message string)                 {}
