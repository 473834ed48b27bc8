package audioio

import (
	"context"
	"errors"
	"testing"

	"github.com/selalipop/milo-firmware/pkg/display"
)

func TestMock_StartStop(t *testing.T) {
	m := NewMock(nil)
	ctx := context.Background()

	if err := m.Start(ctx, func([]byte) {}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !m.Running() {
		t.Error("Expected mock to be running")
	}

	// Starting again is an error
	if err := m.Start(ctx, nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Second Start = %v, want ErrAlreadyStarted", err)
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// Stopping again is a no-op
	if err := m.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}
	if m.Stops() != 2 {
		t.Errorf("Expected 2 stop calls, got %d", m.Stops())
	}
	if m.Running() {
		t.Error("Expected mock to be stopped")
	}
}

func TestMock_StartErr(t *testing.T) {
	m := NewMock(nil)
	m.StartErr = &DeviceError{Op: "open input stream", Cause: errors.New("no device")}

	err := m.Start(context.Background(), func([]byte) {})
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("Expected DeviceError, got %v", err)
	}
	if m.Running() {
		t.Error("Mock should not run after failed Start")
	}

	// Stop is safe after a failed Start
	if err := m.Stop(); err != nil {
		t.Errorf("Stop after failed Start: %v", err)
	}
}

func TestMock_FeedAndOutput(t *testing.T) {
	m := NewMock(nil)

	if m.Feed([]byte{1, 2}) {
		t.Error("Feed before Start should report false")
	}

	var got [][]byte
	if err := m.Start(context.Background(), func(frame []byte) {
		got = append(got, frame)
	}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	m.Feed([]byte{1, 2})
	m.Feed([]byte{3, 4})
	if len(got) != 2 {
		t.Fatalf("Expected 2 input frames, got %d", len(got))
	}

	m.Output([]byte{5, 6})
	m.Output([]byte{7, 8})
	m.Interrupt()
	m.Output([]byte{9, 10})

	outs := m.Outputs()
	if len(outs) != 3 {
		t.Fatalf("Expected 3 outputs, got %d", len(outs))
	}
	if outs[2][0] != 9 {
		t.Errorf("Outputs out of order: %v", outs)
	}

	stats := m.Stats()
	if stats.FramesCaptured != 2 {
		t.Errorf("FramesCaptured = %d, want 2", stats.FramesCaptured)
	}
	if stats.FramesDropped != 2 {
		t.Errorf("FramesDropped = %d, want 2", stats.FramesDropped)
	}
	if m.Interrupts() != 1 {
		t.Errorf("Interrupts = %d, want 1", m.Interrupts())
	}

	m.Stop()
	m.Output([]byte{11, 12})
	if len(m.Outputs()) != 3 {
		t.Error("Output after Stop should be ignored")
	}
}

type recordingIndicator struct {
	busy   int
	clears int
}

func (r *recordingIndicator) ShowBusy() { r.busy++ }
func (r *recordingIndicator) Clear()    { r.clears++ }

var _ display.Indicator = (*recordingIndicator)(nil)

func TestNull_DrivesIndicator(t *testing.T) {
	ind := &recordingIndicator{}
	n := NewNull(ind)

	if err := n.Start(context.Background(), func([]byte) {
		t.Error("Null must not produce input")
	}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := n.Start(context.Background(), nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Second Start = %v, want ErrAlreadyStarted", err)
	}

	n.Output([]byte{0, 0})
	if ind.busy != 1 {
		t.Errorf("Output should show busy, got %d calls", ind.busy)
	}

	n.Interrupt()
	if ind.clears != 1 {
		t.Errorf("Interrupt should clear, got %d calls", ind.clears)
	}

	n.Stop()
	n.Stop()
	if ind.clears != 2 {
		t.Errorf("Stop should clear once, got %d clear calls", ind.clears)
	}

	n.Output([]byte{0, 0})
	if ind.busy != 1 {
		t.Error("Output after Stop should not show busy")
	}
}

func TestNew_Backends(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		wantErr bool
	}{
		{"mock", BackendMock, false},
		{"null", BackendNull, false},
		{"unknown", Backend("alsa"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Backend = tt.backend

			a, err := New(cfg, nil, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && a == nil {
				t.Error("New() returned nil capability")
			}
		})
	}
}

func TestConfig_Frames(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if got := cfg.InputFrames(); got != 4000 {
		t.Errorf("InputFrames() = %d, want 4000", got)
	}
	if got := cfg.OutputFrames(); got != 1000 {
		t.Errorf("OutputFrames() = %d, want 1000", got)
	}
	if got := cfg.InputBytes(); got != 8000 {
		t.Errorf("InputBytes() = %d, want 8000", got)
	}

	cfg.SampleRate = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestAudioChunk_Bytes(t *testing.T) {
	chunk := AudioChunk{
		Samples:    []int16{0x0102, 0x0304, -1},
		SampleRate: 16000,
		Channels:   1,
	}

	bytes := chunk.Bytes()
	if len(bytes) != 6 {
		t.Errorf("Expected 6 bytes, got %d", len(bytes))
	}

	// Check little-endian encoding
	if bytes[0] != 0x02 || bytes[1] != 0x01 {
		t.Errorf("First sample not encoded correctly: %v", bytes[0:2])
	}
}

func TestAudioChunk_FromBytes(t *testing.T) {
	data := []byte{0x02, 0x01, 0x04, 0x03, 0xFF, 0xFF}

	var chunk AudioChunk
	chunk.FromBytes(data, 16000, 1)

	if len(chunk.Samples) != 3 {
		t.Errorf("Expected 3 samples, got %d", len(chunk.Samples))
	}
	if chunk.Samples[0] != 0x0102 {
		t.Errorf("First sample incorrect: got %d, expected %d", chunk.Samples[0], 0x0102)
	}
	if chunk.Samples[2] != -1 {
		t.Errorf("Third sample incorrect: got %d, expected -1", chunk.Samples[2])
	}
}

func TestAudioChunk_Duration(t *testing.T) {
	chunk := AudioChunk{
		Samples:    make([]int16, 4000), // 250ms at 16kHz mono
		SampleRate: 16000,
		Channels:   1,
	}

	duration := chunk.Duration()
	expected := 0.25

	if duration < expected-0.001 || duration > expected+0.001 {
		t.Errorf("Expected duration ~%f, got %f", expected, duration)
	}
}

func TestChunkSamples(t *testing.T) {
	samples := []int16{1, 2, 3, 4, 5}

	chunks := chunkSamples(samples, 2)
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	last := chunks[2]
	if len(last) != 2 || last[0] != 5 || last[1] != 0 {
		t.Errorf("Last chunk should be zero-padded, got %v", last)
	}

	if chunkSamples(nil, 2) != nil {
		t.Error("Expected nil for empty input")
	}
}
