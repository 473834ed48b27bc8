package wake

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    Command
		wantErr bool
	}{
		{"trigger", CommandTrigger, false},
		{"stop", CommandStop, false},
		{"TRIGGER", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseCommand(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCommand(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestManual(t *testing.T) {
	m := NewManual()

	if !m.Trigger() || !m.Stop() {
		t.Fatal("Send should succeed on an empty buffer")
	}
	if got := <-m.Commands(); got != CommandTrigger {
		t.Errorf("first command = %q", got)
	}
	if got := <-m.Commands(); got != CommandStop {
		t.Errorf("second command = %q", got)
	}

	for i := 0; i < DefaultBuffer; i++ {
		m.Trigger()
	}
	if m.Trigger() {
		t.Error("Send on a full buffer should report false")
	}
}

func TestSocket_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "milo.sock")
	sink := NewManual()

	sock, err := Listen(path, sink, testLogger())
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer sock.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := SendCommand(ctx, path, CommandTrigger); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if err := SendCommand(ctx, path, CommandStop); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}

	for _, want := range []Command{CommandTrigger, CommandStop} {
		select {
		case got := <-sink.Commands():
			if got != want {
				t.Errorf("command = %q, want %q", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestSocket_UnknownCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "milo.sock")
	sock, err := Listen(path, NewManual(), testLogger())
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer sock.Close()

	err = SendCommand(context.Background(), path, Command("dance"))
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("SendCommand() = %v, want unknown command error", err)
	}
}

func TestSocket_Close(t *testing.T) {
	path := filepath.Join(t.TempDir(), "milo.sock")
	sock, err := Listen(path, NewManual(), testLogger())
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	if err := sock.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	sock.Close()

	if err := SendCommand(context.Background(), path, CommandTrigger); err == nil {
		t.Error("SendCommand after Close should fail")
	}
}
