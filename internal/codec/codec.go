// Package codec converts captured bitmaps to and from compressed JPEG frames.
//
// Encoding a full-screen bitmap is CPU-bound, so the Encoder runs it on a
// dedicated worker goroutine instead of whatever timer goroutine asked for it.
package codec

import (
	"bytes"
	"image"
	"image/jpeg"
	"log"
	"sync"
)

type encodeJob struct {
	img     image.Image
	quality int
	reply   chan []byte
}

// Encoder compresses frames off the caller's goroutine. A failed encode
// yields nil bytes; the caller drops the frame and waits for the next tick.
type Encoder struct {
	jobs      chan encodeJob
	closeOnce sync.Once
	done      chan struct{}
}

func NewEncoder() *Encoder {
	e := &Encoder{
		jobs: make(chan encodeJob),
		done: make(chan struct{}),
	}
	go e.worker()
	return e
}

func (e *Encoder) worker() {
	for {
		select {
		case <-e.done:
			return
		case job := <-e.jobs:
			job.reply <- encodeJPEG(job.img, job.quality)
		}
	}
}

// Encode compresses img at the given JPEG quality (clamped to 1-100).
// Returns nil on failure or if the encoder has been closed.
func (e *Encoder) Encode(img image.Image, quality int) []byte {
	if img == nil {
		return nil
	}

	job := encodeJob{img: img, quality: clampQuality(quality), reply: make(chan []byte, 1)}
	select {
	case e.jobs <- job:
		return <-job.reply
	case <-e.done:
		return nil
	}
}

// Close stops the worker. In-flight jobs complete; later Encode calls
// return nil.
func (e *Encoder) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

func clampQuality(quality int) int {
	if quality < 1 {
		return 1
	}
	if quality > 100 {
		return 100
	}
	return quality
}

func encodeJPEG(img image.Image, quality int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		log.Printf("JPEG encode error: %v", err)
		return nil
	}
	return buf.Bytes()
}

// Decode decompresses a received frame. Used by the viewer side and tests;
// returns nil on malformed data so one bad frame never kills a stream loop.
func Decode(data []byte) image.Image {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		log.Printf("JPEG decode error: %v", err)
		return nil
	}
	return img
}
