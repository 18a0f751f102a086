//go:build windows

package capture

import (
	"image"
	"log"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	gdi32  = windows.NewLazySystemDLL("gdi32.dll")

	procGetDC                  = user32.NewProc("GetDC")
	procReleaseDC              = user32.NewProc("ReleaseDC")
	procGetSystemMetrics       = user32.NewProc("GetSystemMetrics")
	procCreateCompatibleDC     = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject           = gdi32.NewProc("SelectObject")
	procBitBlt                 = gdi32.NewProc("BitBlt")
	procGetDIBits              = gdi32.NewProc("GetDIBits")
	procDeleteObject           = gdi32.NewProc("DeleteObject")
	procDeleteDC               = gdi32.NewProc("DeleteDC")
)

const (
	smCxScreen = 0
	smCyScreen = 1

	srcCopy    = 0x00CC0020
	captureBlt = 0x40000000

	biRGB        = 0
	dibRGBColors = 0
)

type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

type bitmapInfo struct {
	Header bitmapInfoHeader
	Colors [1]uint32
}

// GDICapturer captures the desktop with direct GDI calls. Compared to the
// generic capturer it honors CAPTUREBLT (layered windows) and is the path the
// display-affinity exclusions are defined against.
type GDICapturer struct{}

func NewGDICapturer() *GDICapturer {
	return &GDICapturer{}
}

// NewPlatformCapturer returns the preferred capturer for this OS.
func NewPlatformCapturer() ScreenCapturer {
	return NewGDICapturer()
}

func (c *GDICapturer) ScreenSize() (int, int) {
	w, _, _ := procGetSystemMetrics.Call(smCxScreen)
	h, _, _ := procGetSystemMetrics.Call(smCyScreen)
	return int(w), int(h)
}

// CaptureScreen copies the visible desktop into an RGBA image. Every DC and
// bitmap handle is released on success and failure paths alike; this runs on
// every capture tick for the lifetime of the process.
func (c *GDICapturer) CaptureScreen() *Frame {
	width, height := c.ScreenSize()
	if width <= 0 || height <= 0 {
		log.Printf("Screen capture: invalid screen size %dx%d", width, height)
		return nil
	}

	screenDC, _, _ := procGetDC.Call(0)
	if screenDC == 0 {
		log.Println("Screen capture: GetDC failed")
		return nil
	}
	defer procReleaseDC.Call(0, screenDC)

	memDC, _, _ := procCreateCompatibleDC.Call(screenDC)
	if memDC == 0 {
		log.Println("Screen capture: CreateCompatibleDC failed")
		return nil
	}
	defer procDeleteDC.Call(memDC)

	bitmap, _, _ := procCreateCompatibleBitmap.Call(screenDC, uintptr(width), uintptr(height))
	if bitmap == 0 {
		log.Println("Screen capture: CreateCompatibleBitmap failed")
		return nil
	}
	defer procDeleteObject.Call(bitmap)

	oldObj, _, _ := procSelectObject.Call(memDC, bitmap)
	if oldObj == 0 {
		log.Println("Screen capture: SelectObject failed")
		return nil
	}
	defer procSelectObject.Call(memDC, oldObj)

	ret, _, _ := procBitBlt.Call(memDC, 0, 0, uintptr(width), uintptr(height),
		screenDC, 0, 0, srcCopy|captureBlt)
	if ret == 0 {
		log.Println("Screen capture: BitBlt failed")
		return nil
	}

	// Negative height requests a top-down DIB so row 0 is the top of the
	// screen; 32bpp BGRA with BI_RGB needs no stride padding.
	info := bitmapInfo{
		Header: bitmapInfoHeader{
			Size:        uint32(unsafe.Sizeof(bitmapInfoHeader{})),
			Width:       int32(width),
			Height:      -int32(height),
			Planes:      1,
			BitCount:    32,
			Compression: biRGB,
		},
	}

	buf := make([]byte, width*height*4)
	ret, _, _ = procGetDIBits.Call(memDC, bitmap, 0, uintptr(height),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&info)), dibRGBColors)
	if ret == 0 {
		log.Println("Screen capture: GetDIBits failed")
		return nil
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		// DIB rows are BGRA
		img.Pix[i*4+0] = buf[i*4+2]
		img.Pix[i*4+1] = buf[i*4+1]
		img.Pix[i*4+2] = buf[i*4+0]
		img.Pix[i*4+3] = 0xFF
	}

	return &Frame{Image: img, Width: width, Height: height}
}
