package audioio

import (
	"context"
	"sync"

	"github.com/selalipop/milo-firmware/pkg/display"
)

// Null is an audio capability without audio. It produces no input and
// discards output; output shows the busy indicator so a silent device
// still signals that the agent is speaking.
type Null struct {
	indicator display.Indicator

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewNull creates a Null capability driving indicator.
// A nil indicator means display.Null.
func NewNull(indicator display.Indicator) *Null {
	if indicator == nil {
		indicator = display.Null{}
	}
	return &Null{indicator: indicator}
}

// Start marks the capability started. input is never called.
func (n *Null) Start(ctx context.Context, input InputFunc) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return ErrAlreadyStarted
	}
	n.started = true
	return nil
}

// Stop clears the indicator.
func (n *Null) Stop() error {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return nil
	}
	n.stopped = true
	n.mu.Unlock()

	n.indicator.Clear()
	return nil
}

// Output shows the busy indicator.
func (n *Null) Output(frame []byte) {
	n.mu.Lock()
	stopped := n.stopped
	n.mu.Unlock()

	if !stopped {
		n.indicator.ShowBusy()
	}
}

// Interrupt clears the indicator.
func (n *Null) Interrupt() {
	n.indicator.Clear()
}

var _ Interface = (*Null)(nil)
