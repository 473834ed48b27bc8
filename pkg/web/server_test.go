package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/selalipop/milo-firmware/pkg/hub"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeController struct {
	triggers, ends int
	triggerErr     error
	endErr         error
}

func (f *fakeController) Trigger() error {
	f.triggers++
	return f.triggerErr
}

func (f *fakeController) End() error {
	f.ends++
	return f.endErr
}

func do(t *testing.T, s *Server, method, path string) (int, string) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(method, path, nil), -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestServer_Status(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, nil, testLogger())

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.UpdateStatus(func(st *Status) {
		st.State = "active"
		st.ConversationID = "conv-1"
		st.StartedAt = &started
		st.Tools = []string{"playExistingSong"}
	})
	s.ShowBusy()

	code, body := do(t, s, http.MethodGet, "/api/status")
	if code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if got := gjson.Get(body, "state").String(); got != "active" {
		t.Errorf("state = %q", got)
	}
	if got := gjson.Get(body, "conversation_id").String(); got != "conv-1" {
		t.Errorf("conversation_id = %q", got)
	}
	if !gjson.Get(body, "speaking").Bool() {
		t.Error("speaking should be true after ShowBusy")
	}
	if got := gjson.Get(body, "tools.0").String(); got != "playExistingSong" {
		t.Errorf("tools = %s", gjson.Get(body, "tools").Raw)
	}

	s.Clear()
	if s.Status().Speaking {
		t.Error("speaking should be false after Clear")
	}
}

func TestServer_Conversation(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, nil, testLogger())

	for i := 0; i < maxConversation+5; i++ {
		s.AddConversation(RoleUser, "hello")
	}
	s.AddConversation(RoleAgent, "hi there")

	_, body := do(t, s, http.MethodGet, "/api/conversation")
	entries := gjson.Parse(body).Array()
	if len(entries) != maxConversation {
		t.Fatalf("got %d entries, want %d", len(entries), maxConversation)
	}
	last := entries[len(entries)-1]
	if last.Get("role").String() != RoleAgent || last.Get("message").String() != "hi there" {
		t.Errorf("last entry = %s", last.Raw)
	}
}

func TestServer_TriggerAndEnd(t *testing.T) {
	tests := []struct {
		name     string
		ctrl     *fakeController
		path     string
		wantCode int
	}{
		{"trigger", &fakeController{}, "/api/trigger", http.StatusAccepted},
		{"trigger busy", &fakeController{triggerErr: ErrBusy}, "/api/trigger", http.StatusConflict},
		{"trigger failure", &fakeController{triggerErr: errors.New("boom")}, "/api/trigger", http.StatusInternalServerError},
		{"end", &fakeController{}, "/api/end", http.StatusOK},
		{"end without session", &fakeController{endErr: ErrNoSession}, "/api/end", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer("127.0.0.1:0", tt.ctrl, nil, testLogger())

			code, body := do(t, s, http.MethodPost, tt.path)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d (body %s)", code, tt.wantCode, body)
			}
			if tt.ctrl.triggers+tt.ctrl.ends != 1 {
				t.Errorf("controller called %d times", tt.ctrl.triggers+tt.ctrl.ends)
			}
		})
	}
}

func TestServer_NoController(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, nil, testLogger())

	if code, _ := do(t, s, http.MethodPost, "/api/trigger"); code != http.StatusServiceUnavailable {
		t.Errorf("trigger code = %d", code)
	}
	if code, _ := do(t, s, http.MethodGet, "/api/trigger"); code != http.StatusMethodNotAllowed && code != http.StatusNotFound {
		t.Errorf("GET trigger code = %d", code)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, nil, testLogger())

	code, body := do(t, s, http.MethodGet, "/metrics")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics output missing default collectors")
	}
}

func TestServer_WebSocketRequiresUpgrade(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, nil, testLogger())

	if code, _ := do(t, s, http.MethodGet, "/ws/status"); code != http.StatusUpgradeRequired {
		t.Errorf("code = %d, want 426", code)
	}
}

func TestServer_StatusWebSocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	statusHub := hub.New("status", testLogger())
	go statusHub.Run(ctx)

	s := NewServer("127.0.0.1:0", nil, statusHub, testLogger())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	go s.Serve(ln)
	defer s.Shutdown()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/status", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	read := func() gjson.Result {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		return gjson.ParseBytes(data)
	}

	if got := read().Get("state").String(); got != "idle" {
		t.Errorf("initial state = %q", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for statusHub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	s.UpdateStatus(func(st *Status) { st.State = "connecting" })
	if got := read().Get("state").String(); got != "connecting" {
		t.Errorf("pushed state = %q", got)
	}
}
