// Package audioio provides full-duplex audio for a conversation session.
//
// This package supports multiple backends:
//   - PortAudio - microphone and speaker on the device (Raspberry Pi, Mac)
//   - Null - no audio at all, output only drives the busy indicator
//   - Mock - CI/Testing without hardware
//
// All backends exchange 16-bit signed little-endian mono PCM frames.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects PortAudio when cgo is available, Null otherwise.
	BackendAuto Backend = "auto"
	// BackendPortAudio uses PortAudio for cross-platform audio I/O.
	BackendPortAudio Backend = "portaudio"
	// BackendNull discards output and produces no input.
	BackendNull Backend = "null"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	// Default: 16000 (agent PCM format)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// InputBufferDuration is the size of one captured frame.
	// Default: 250ms (4000 samples at 16kHz)
	InputBufferDuration time.Duration `yaml:"input_buffer_duration" json:"input_buffer_duration"`

	// OutputBufferDuration is the size of one device write.
	// Default: 62.5ms (1000 samples at 16kHz)
	OutputBufferDuration time.Duration `yaml:"output_buffer_duration" json:"output_buffer_duration"`

	// Device is a case-insensitive substring of the device name to use for
	// both capture and playback. Empty selects the system defaults.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:              BackendAuto,
		SampleRate:           16000,
		Channels:             1,
		InputBufferDuration:  250 * time.Millisecond,
		OutputBufferDuration: 62500 * time.Microsecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.InputBufferDuration <= 0 {
		return fmt.Errorf("input_buffer_duration must be positive, got %v", c.InputBufferDuration)
	}
	if c.OutputBufferDuration <= 0 {
		return fmt.Errorf("output_buffer_duration must be positive, got %v", c.OutputBufferDuration)
	}
	switch c.Backend {
	case "", BackendAuto, BackendPortAudio, BackendNull, BackendMock:
	default:
		return fmt.Errorf("unsupported backend: %s", c.Backend)
	}
	return nil
}

// InputFrames returns the number of samples per captured frame.
func (c *Config) InputFrames() int {
	return int(float64(c.SampleRate) * c.InputBufferDuration.Seconds())
}

// OutputFrames returns the number of samples per device write.
func (c *Config) OutputFrames() int {
	return int(float64(c.SampleRate) * c.OutputBufferDuration.Seconds())
}

// InputBytes returns the size of a captured frame in bytes.
func (c *Config) InputBytes() int {
	return c.InputFrames() * c.Channels * 2
}
