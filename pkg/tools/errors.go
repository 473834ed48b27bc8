package tools

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the Registry, always wrapped in *Error.
// Handler errors are never wrapped.
var (
	// ErrDuplicateName is returned when a tool name is registered twice.
	ErrDuplicateName = errors.New("tools: duplicate tool name")

	// ErrInvalidHandler is returned when registering a nil handler.
	ErrInvalidHandler = errors.New("tools: handler is not callable")

	// ErrInvalidName is returned when registering an empty name.
	ErrInvalidName = errors.New("tools: invalid tool name")

	// ErrNotRunning is returned by Handle while the registry is stopped.
	ErrNotRunning = errors.New("tools: registry is not running")

	// ErrUnknownTool is returned by Handle for a name that was never registered.
	ErrUnknownTool = errors.New("tools: unknown tool")
)

// Error ties a registry or handler failure to the tool it concerns.
type Error struct {
	Tool string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %q: %v", e.Tool, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsHandlerError reports whether err came from a tool handler rather than
// from the registry itself.
func IsHandlerError(err error) bool {
	if err == nil {
		return false
	}
	var te *Error
	if !errors.As(err, &te) {
		return true
	}
	switch {
	case errors.Is(te.Err, ErrDuplicateName),
		errors.Is(te.Err, ErrInvalidHandler),
		errors.Is(te.Err, ErrInvalidName),
		errors.Is(te.Err, ErrNotRunning),
		errors.Is(te.Err, ErrUnknownTool):
		return false
	}
	return true
}
