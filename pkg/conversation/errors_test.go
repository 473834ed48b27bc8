package conversation

import (
	"errors"
	"io"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	connErr := NewConnectionError("dial failed", io.ErrUnexpectedEOF, true)
	if !errors.Is(connErr, io.ErrUnexpectedEOF) {
		t.Error("ConnectionError should unwrap to its cause")
	}
	if !IsRetryable(connErr) {
		t.Error("ConnectionError should be retryable")
	}

	transportErr := &TransportError{Op: "read", Cause: io.EOF}
	if !errors.Is(transportErr, io.EOF) {
		t.Error("TransportError should unwrap to its cause")
	}
	if !IsTransport(transportErr) || IsTransport(connErr) {
		t.Error("IsTransport misclassified")
	}

	if IsRetryable(NewAPIError(400, "bad request")) {
		t.Error("400 should not be retryable")
	}
}

func TestProtocolError_Message(t *testing.T) {
	err := &ProtocolError{Type: TypeAudio, Reason: "missing event id"}
	want := "conversation: protocol error in audio event: missing event id"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
