// Package wake delivers wake signals to the daemon.
//
// A wake source is anything that produces commands: the Manual source is fed
// in-process (dashboard, tests), and Socket accepts commands from other
// processes such as a wake word detector or milo-ctl.
package wake

import "fmt"

// Command is a control command for the daemon.
type Command string

const (
	// CommandTrigger starts a conversation.
	CommandTrigger Command = "trigger"
	// CommandStop ends the active conversation.
	CommandStop Command = "stop"
)

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	return c == CommandTrigger || c == CommandStop
}

// ParseCommand converts s into a Command.
func ParseCommand(s string) (Command, error) {
	c := Command(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown command %q", s)
	}
	return c, nil
}

// Source produces wake commands.
type Source interface {
	Commands() <-chan Command
}

// DefaultBuffer is the number of commands a Manual source holds before
// dropping new ones.
const DefaultBuffer = 8

// Manual is a Source fed by Send. It is safe for concurrent use.
type Manual struct {
	ch chan Command
}

// NewManual creates a Manual source.
func NewManual() *Manual {
	return &Manual{ch: make(chan Command, DefaultBuffer)}
}

// Send queues cmd. It returns false when the buffer is full.
func (m *Manual) Send(cmd Command) bool {
	select {
	case m.ch <- cmd:
		return true
	default:
		return false
	}
}

// Trigger queues a wake signal.
func (m *Manual) Trigger() bool {
	return m.Send(CommandTrigger)
}

// Stop queues a stop command.
func (m *Manual) Stop() bool {
	return m.Send(CommandStop)
}

// Commands returns the command stream.
func (m *Manual) Commands() <-chan Command {
	return m.ch
}

var _ Source = (*Manual)(nil)
