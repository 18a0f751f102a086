package codec

import (
	"image"
	"image/color"
	"sync"
	"testing"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	return img
}

// Encoding then decoding must preserve pixel dimensions.
func TestEncodeDecodeDimensions(t *testing.T) {
	e := NewEncoder()
	defer e.Close()

	img := testImage(320, 200)
	data := e.Encode(img, 60)
	if data == nil {
		t.Fatal("encode returned nil for a valid image")
	}

	decoded := Decode(data)
	if decoded == nil {
		t.Fatal("decode returned nil for encoder output")
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 320 || bounds.Dy() != 200 {
		t.Errorf("dimensions changed in transit: got %dx%d, want 320x200", bounds.Dx(), bounds.Dy())
	}
}

func TestEncodeNilImage(t *testing.T) {
	e := NewEncoder()
	defer e.Close()

	if data := e.Encode(nil, 60); data != nil {
		t.Errorf("expected nil for nil image, got %d bytes", len(data))
	}
}

func TestEncodeQualityClamp(t *testing.T) {
	e := NewEncoder()
	defer e.Close()

	img := testImage(64, 64)
	for _, q := range []int{-5, 0, 1, 100, 250} {
		if data := e.Encode(img, q); data == nil {
			t.Errorf("encode failed at quality %d", q)
		}
	}
}

func TestEncodeAfterClose(t *testing.T) {
	e := NewEncoder()
	e.Close()

	if data := e.Encode(testImage(16, 16), 60); data != nil {
		t.Error("expected nil from a closed encoder")
	}
}

func TestDecodeGarbage(t *testing.T) {
	if img := Decode([]byte("not a jpeg")); img != nil {
		t.Error("expected nil for malformed frame data")
	}
	if img := Decode(nil); img != nil {
		t.Error("expected nil for empty frame data")
	}
}

// Concurrent encodes from several timer goroutines must all complete.
func TestEncodeConcurrent(t *testing.T) {
	e := NewEncoder()
	defer e.Close()

	img := testImage(128, 128)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if data := e.Encode(img, 50); data == nil {
				t.Error("concurrent encode returned nil")
			}
		}()
	}
	wg.Wait()
}
