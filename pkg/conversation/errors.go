package conversation

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conversation package.
var (
	// ErrMissingAPIKey indicates the API key was not provided.
	ErrMissingAPIKey = errors.New("conversation: API key is required")

	// ErrMissingAgentID indicates the agent ID was not provided.
	ErrMissingAgentID = errors.New("conversation: agent ID is required")

	// ErrUnknownEvent indicates an inbound message with an unknown or missing type.
	ErrUnknownEvent = errors.New("conversation: unknown event type")

	// ErrSessionClosed indicates the session has no open connection.
	ErrSessionClosed = errors.New("conversation: session closed")
)

// APIError represents an error from the ElevenLabs REST API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the response body or error description.
	Message string

	// Retryable indicates if the request can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("conversation: API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// NewAPIError creates a new APIError.
func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		Retryable:  statusCode == 429 || statusCode >= 500,
	}
}

// ConnectionError represents a failure to establish the session.
type ConnectionError struct {
	// Reason describes why the connection failed.
	Reason string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates if a later attempt may succeed.
	Retryable bool
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("conversation: connection error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("conversation: connection error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(reason string, cause error, retryable bool) *ConnectionError {
	return &ConnectionError{
		Reason:    reason,
		Cause:     cause,
		Retryable: retryable,
	}
}

// TransportError is a websocket failure after the session became active.
// It ends the session.
type TransportError struct {
	// Op is the failed operation ("read" or "write").
	Op string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("conversation: transport %s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ProtocolError reports a malformed inbound event. The event is skipped
// and the session continues.
type ProtocolError struct {
	// Type is the envelope type of the offending message, if known.
	Type string

	// Reason describes what was wrong.
	Reason string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("conversation: protocol error: %s", e.Reason)
	}
	return fmt.Sprintf("conversation: protocol error in %s event: %s", e.Type, e.Reason)
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Retryable
	}
	return false
}

// IsTransport returns true if err ended an active session.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
