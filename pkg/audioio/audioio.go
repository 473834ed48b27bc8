package audioio

import (
	"context"
	"errors"
	"fmt"
)

// ErrAlreadyStarted is returned when Start is called more than once.
var ErrAlreadyStarted = errors.New("audioio: already started")

// InputFunc receives each captured PCM frame. It is called from the capture
// goroutine and must not block for longer than one frame.
type InputFunc func(frame []byte)

// Interface is the full-duplex audio capability a session drives.
type Interface interface {
	// Start begins capture and accepts output. input is called once per
	// captured frame. A second Start returns ErrAlreadyStarted.
	Start(ctx context.Context, input InputFunc) error

	// Stop halts capture and playback and releases the device.
	// It is safe to call Stop multiple times and after a failed Start.
	Stop() error

	// Output queues a frame for playback. It never blocks and is a no-op
	// after Stop.
	Output(frame []byte)

	// Interrupt discards every queued frame that has not started playing.
	Interrupt()
}

// Stats contains counters for an audio capability.
type Stats struct {
	// FramesCaptured is the number of frames handed to the input callback.
	FramesCaptured int64 `json:"frames_captured"`

	// FramesPlayed is the number of frames written to the output.
	FramesPlayed int64 `json:"frames_played"`

	// FramesDropped is the number of queued frames discarded by Interrupt.
	FramesDropped int64 `json:"frames_dropped"`

	// WriteErrors is the number of failed device writes.
	WriteErrors int64 `json:"write_errors"`

	// Running indicates if the capability is started.
	Running bool `json:"running"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`
}

// DeviceError reports a failure of the audio device.
type DeviceError struct {
	Op    string
	Cause error
}

func (e *DeviceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("audioio: %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("audioio: %s", e.Op)
}

func (e *DeviceError) Unwrap() error {
	return e.Cause
}

// AudioChunk represents a chunk of audio data.
type AudioChunk struct {
	// Samples contains PCM16 audio samples.
	Samples []int16

	// SampleRate is the sample rate of this chunk.
	SampleRate int

	// Channels is the number of channels in this chunk.
	Channels int
}

// Bytes returns the chunk as little-endian PCM16.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// FromBytes populates the chunk from raw PCM16 bytes.
func (c *AudioChunk) FromBytes(data []byte, sampleRate, channels int) {
	c.SampleRate = sampleRate
	c.Channels = channels
	c.Samples = BytesToSamples(data)
}

// Duration returns the duration of this audio chunk in seconds.
func (c *AudioChunk) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}
