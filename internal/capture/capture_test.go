package capture

import (
	"errors"
	"image"
	"testing"
)

// swapDisplays points the library hooks at fakes for one test.
func swapDisplays(t *testing.T, count int, bounds image.Rectangle,
	capture func(image.Rectangle) (*image.RGBA, error)) {
	t.Helper()

	origCount := numActiveDisplays
	origBounds := displayBounds
	origCapture := captureRect
	t.Cleanup(func() {
		numActiveDisplays = origCount
		displayBounds = origBounds
		captureRect = origCapture
	})

	numActiveDisplays = func() int { return count }
	displayBounds = func(int) image.Rectangle { return bounds }
	captureRect = capture
}

func TestScreenshotCapturerNoDisplays(t *testing.T) {
	swapDisplays(t, 0, image.Rectangle{}, func(image.Rectangle) (*image.RGBA, error) {
		t.Fatal("capture attempted with zero displays")
		return nil, nil
	})

	c := NewScreenshotCapturer()
	if frame := c.CaptureScreen(); frame != nil {
		t.Errorf("CaptureScreen = %+v, want nil with zero displays", frame)
	}
	if w, h := c.ScreenSize(); w != 0 || h != 0 {
		t.Errorf("ScreenSize = %dx%d, want 0x0 with zero displays", w, h)
	}
}

func TestScreenshotCapturerCaptureError(t *testing.T) {
	swapDisplays(t, 1, image.Rect(0, 0, 100, 80), func(image.Rectangle) (*image.RGBA, error) {
		return nil, errors.New("display detached")
	})

	if frame := NewScreenshotCapturer().CaptureScreen(); frame != nil {
		t.Errorf("CaptureScreen = %+v, want nil on capture error", frame)
	}
}

// A panicking backend must surface as a skipped frame, never escape the
// driver boundary.
func TestScreenshotCapturerRecoversPanic(t *testing.T) {
	swapDisplays(t, 1, image.Rect(0, 0, 100, 80), func(image.Rectangle) (*image.RGBA, error) {
		panic("no X11 display")
	})

	frame := NewScreenshotCapturer().CaptureScreen()
	if frame != nil {
		t.Errorf("CaptureScreen = %+v, want nil after recovered panic", frame)
	}
}

func TestScreenshotCapturerSuccess(t *testing.T) {
	bounds := image.Rect(0, 0, 64, 48)
	img := image.NewRGBA(bounds)
	swapDisplays(t, 1, bounds, func(r image.Rectangle) (*image.RGBA, error) {
		if r != bounds {
			t.Errorf("capture rect = %v, want %v", r, bounds)
		}
		return img, nil
	})

	c := NewScreenshotCapturer()
	frame := c.CaptureScreen()
	if frame == nil {
		t.Fatal("CaptureScreen returned nil on a healthy display")
	}
	if frame.Width != 64 || frame.Height != 48 {
		t.Errorf("frame size = %dx%d, want 64x48", frame.Width, frame.Height)
	}
	if frame.Image != img {
		t.Error("frame does not carry the captured bitmap")
	}
	if w, h := c.ScreenSize(); w != 64 || h != 48 {
		t.Errorf("ScreenSize = %dx%d, want 64x48", w, h)
	}
}
