package audioio

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Mock is an in-memory audio capability for testing.
// It records output frames and lets tests inject captured frames with Feed.
type Mock struct {
	logger *slog.Logger

	// StartErr, when set, is returned from Start.
	StartErr error

	mu      sync.Mutex
	started bool
	stopped bool
	input   InputFunc
	outputs [][]byte
	queued  int

	// Stats
	framesCaptured atomic.Int64
	framesDropped  atomic.Int64
	interrupts     atomic.Int64
	stops          atomic.Int64
}

// NewMock creates a new mock audio capability.
func NewMock(logger *slog.Logger) *Mock {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mock{logger: logger}
}

// Start records input for Feed.
func (m *Mock) Start(ctx context.Context, input InputFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true

	if m.StartErr != nil {
		return m.StartErr
	}
	m.input = input

	m.logger.Info("mock audio started")
	return nil
}

// Stop marks the mock stopped. Every call is counted.
func (m *Mock) Stop() error {
	m.stops.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	m.stopped = true
	m.input = nil

	m.logger.Info("mock audio stopped")
	return nil
}

// Output records frame unless the mock is stopped.
func (m *Mock) Output(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.outputs = append(m.outputs, append([]byte(nil), frame...))
	m.queued++
}

// Interrupt counts the call and treats every output since the previous
// interrupt as dropped.
func (m *Mock) Interrupt() {
	m.interrupts.Add(1)

	m.mu.Lock()
	dropped := m.queued
	m.queued = 0
	m.mu.Unlock()

	m.framesDropped.Add(int64(dropped))
}

// Feed delivers frame to the input callback as if it had been captured.
// It returns false if the mock is not running.
func (m *Mock) Feed(frame []byte) bool {
	m.mu.Lock()
	input := m.input
	m.mu.Unlock()

	if input == nil {
		return false
	}
	m.framesCaptured.Add(1)
	input(frame)
	return true
}

// Outputs returns a copy of every frame passed to Output.
func (m *Mock) Outputs() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.outputs...)
}

// Interrupts returns how many times Interrupt was called.
func (m *Mock) Interrupts() int {
	return int(m.interrupts.Load())
}

// Stops returns how many times Stop was called.
func (m *Mock) Stops() int {
	return int(m.stops.Load())
}

// Running reports whether Start succeeded and Stop has not been called.
func (m *Mock) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.input != nil
}

// Stats returns mock statistics.
func (m *Mock) Stats() Stats {
	m.mu.Lock()
	played := len(m.outputs)
	m.mu.Unlock()

	return Stats{
		FramesCaptured: m.framesCaptured.Load(),
		FramesPlayed:   int64(played),
		FramesDropped:  m.framesDropped.Load(),
		Running:        m.Running(),
		Backend:        string(BackendMock),
	}
}

var _ Interface = (*Mock)(nil)
