// Package capture grabs the visible desktop into an in-memory bitmap.
//
// Capture failures are normal during session transitions (locked desktop,
// display reconfiguration), so CaptureScreen returns nil instead of an error
// and callers skip the tick and try again on the next one.
package capture

import (
	"image"
	"log"

	"github.com/kbinani/screenshot"
)

// Frame is one raw captured bitmap, consumed immediately by the encoder or
// upload path and never persisted.
type Frame struct {
	Image  *image.RGBA
	Width  int
	Height int
}

// ScreenCapturer captures the primary display.
type ScreenCapturer interface {
	// CaptureScreen returns the current desktop contents, or nil if the
	// capture failed. It never panics across this boundary.
	CaptureScreen() *Frame

	// ScreenSize returns the primary display resolution. Cheap enough to
	// call on every heartbeat.
	ScreenSize() (width, height int)
}

// Library entry points, swappable in tests. Display topology cannot be
// faked through the library itself.
var (
	numActiveDisplays = screenshot.NumActiveDisplays
	displayBounds     = screenshot.GetDisplayBounds
	captureRect       = screenshot.CaptureRect
)

// ScreenshotCapturer captures via the cross-platform screenshot library.
// Used on non-Windows builds and as a fallback when the GDI driver is
// unavailable.
type ScreenshotCapturer struct{}

func NewScreenshotCapturer() *ScreenshotCapturer {
	return &ScreenshotCapturer{}
}

func (c *ScreenshotCapturer) CaptureScreen() (frame *Frame) {
	// The screenshot library can panic on headless systems; keep that
	// inside the driver boundary.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Screen capture panic recovered: %v", r)
			frame = nil
		}
	}()

	if numActiveDisplays() == 0 {
		return nil
	}

	bounds := displayBounds(0)
	img, err := captureRect(bounds)
	if err != nil {
		log.Printf("Screen capture error: %v", err)
		return nil
	}

	return &Frame{Image: img, Width: bounds.Dx(), Height: bounds.Dy()}
}

func (c *ScreenshotCapturer) ScreenSize() (int, int) {
	if numActiveDisplays() == 0 {
		return 0, 0
	}
	bounds := displayBounds(0)
	return bounds.Dx(), bounds.Dy()
}
