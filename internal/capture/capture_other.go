//go:build !windows

package capture

// NewPlatformCapturer returns the preferred capturer for this OS.
func NewPlatformCapturer() ScreenCapturer {
	return NewScreenshotCapturer()
}
