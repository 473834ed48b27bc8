package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/selalipop/milo-firmware/pkg/audioio"
	"github.com/selalipop/milo-firmware/pkg/conversation"
	"github.com/selalipop/milo-firmware/pkg/display"
	"github.com/selalipop/milo-firmware/pkg/tools"
	"github.com/selalipop/milo-firmware/pkg/wake"
	"github.com/selalipop/milo-firmware/pkg/web"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type silentChime struct{ plays int }

func (c *silentChime) Play(context.Context) error {
	c.plays++
	return nil
}

func newAgentServer(t *testing.T) (*httptest.Server, chan *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)
	return srv, conns
}

func newTestDaemon(t *testing.T, baseURL string) (*daemon, *silentChime) {
	t.Helper()
	c := &silentChime{}
	d := &daemon{
		logger: testLogger(),
		source: wake.NewManual(),
		newAudio: func() (audioio.Interface, error) {
			return audioio.NewMock(testLogger()), nil
		},
		newConfig: func() *conversation.Config {
			cfg := conversation.DefaultConfig()
			cfg.Apply(
				conversation.WithAgentID("agent"),
				conversation.WithBaseURL(baseURL),
				conversation.WithPollInterval(20*time.Millisecond),
				conversation.WithLogger(testLogger()),
			)
			return cfg
		},
		registry:  tools.NewRegistry(testLogger()),
		indicator: display.Null{},
		chime:     c,
	}
	d.dash = web.NewServer("127.0.0.1:0", d, nil, testLogger())
	return d, c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDaemon_WakeConverseStop(t *testing.T) {
	srv, conns := newAgentServer(t)
	d, c := newTestDaemon(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()

	if err := d.End(); !errors.Is(err, web.ErrNoSession) {
		t.Errorf("End() while idle = %v, want ErrNoSession", err)
	}
	if err := d.Trigger(); err != nil {
		t.Fatalf("Trigger() = %v", err)
	}

	var agent *websocket.Conn
	select {
	case agent = <-conns:
		defer agent.Close()
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not connect to the agent")
	}

	agent.WriteMessage(websocket.TextMessage, []byte(
		`{"type":"conversation_initiation_metadata","conversation_initiation_metadata_event":{"conversation_id":"conv-9"}}`))
	agent.WriteMessage(websocket.TextMessage, []byte(
		`{"type":"agent_response","agent_response_event":{"agent_response":"Hello!"}}`))

	waitFor(t, "active status", func() bool {
		st := d.dash.Status()
		return st.State == "active" && st.ConversationID == "conv-9" && st.LastAgentMessage == "Hello!"
	})

	if err := d.Trigger(); !errors.Is(err, web.ErrBusy) {
		t.Errorf("Trigger() during conversation = %v, want ErrBusy", err)
	}

	d.source.Stop()
	waitFor(t, "idle status", func() bool { return d.dash.Status().State == "idle" })

	if st := d.dash.Status(); st.Sessions != 1 || st.LastError != "" {
		t.Errorf("status after stop = %+v", st)
	}
	if c.plays != 1 {
		t.Errorf("chime played %d times, want 1", c.plays)
	}

	waitFor(t, "daemon ready", func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return !d.running && d.current == nil
	})

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDaemon_ConnectFailure(t *testing.T) {
	d, _ := newTestDaemon(t, "http://127.0.0.1:1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.source.Trigger()
	waitFor(t, "error status", func() bool {
		st := d.dash.Status()
		return st.State == "idle" && st.LastError != ""
	})
}

func TestDaemon_AudioFailure(t *testing.T) {
	d, _ := newTestDaemon(t, "http://127.0.0.1:1")
	d.newAudio = func() (audioio.Interface, error) {
		return nil, errors.New("no device")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.source.Trigger()
	waitFor(t, "error status", func() bool {
		return d.dash.Status().LastError == "no device"
	})
}
