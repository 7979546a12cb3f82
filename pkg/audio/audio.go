// Package audio provides the capture and encoding half of the background
// pipeline: acquiring a microphone stream, borrowing it for fixed-duration
// recordings, and turning raw PCM into the base64 WAV payload the speech
// model expects.
package audio

import (
	"context"
	"errors"
	"io"
)

// ErrNoDevice is returned when no capture device can be acquired.
var ErrNoDevice = errors.New("audio: capture device unavailable")

// Format describes interleaved 16-bit signed little-endian PCM.
type Format struct {
	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int
}

// BytesPerSecond returns the PCM byte rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Target is the canonical format sent to the speech model: mono 16 kHz.
var Target = Format{SampleRate: 16000, Channels: 1}

// Stream is a live PCM capture stream.
type Stream interface {
	io.ReadCloser

	// Format reports the PCM format the stream produces.
	Format() Format
}

// Device acquires capture streams. Acquire may fail when the microphone is
// missing or access is denied.
type Device interface {
	Acquire(ctx context.Context) (Stream, error)
}
