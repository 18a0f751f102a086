// Package stream implements the live-view wire protocol: a TCP server that
// authenticates viewers with a shared secret and pushes length-prefixed JPEG
// frames, and the matching client-side decoder.
//
// The protocol is line-oriented ASCII until a frame body starts:
//
//	C -> S:  AUTH <password>\n
//	S -> C:  OK AUDIO=0\n   or   FAIL\n (then close)
//	C -> S:  SET_FPS <n>\n
//	S -> C:  FRAME <byteLength>\n  followed by exactly byteLength raw bytes
//
// Audio is advertised as unsupported; the AUDIO= flag exists only so older
// viewers can parse the greeting.
package stream

import "time"

const (
	// DefaultPort is the well-known viewer port.
	DefaultPort = 5902

	cmdAuth   = "AUTH"
	cmdSetFPS = "SET_FPS"

	respOK   = "OK AUDIO=0"
	respFail = "FAIL"

	frameHeader = "FRAME"

	minFPS = 1
	maxFPS = 4

	minInterval = 250 * time.Millisecond
	maxInterval = 2000 * time.Millisecond
)

// clampFPS bounds a requested frame rate to what the capture pipeline can
// sustain. Non-positive values mean "no valid request" and fall back to def.
func clampFPS(requested, def int) int {
	if requested <= 0 {
		requested = def
	}
	if requested < minFPS {
		return minFPS
	}
	if requested > maxFPS {
		return maxFPS
	}
	return requested
}

// intervalForFPS converts a frame rate to a capture interval, clamped to
// [250ms, 2000ms].
func intervalForFPS(fps int) time.Duration {
	if fps <= 0 {
		return maxInterval
	}
	interval := time.Duration(1000/fps) * time.Millisecond
	if interval < minInterval {
		return minInterval
	}
	if interval > maxInterval {
		return maxInterval
	}
	return interval
}
