package httpc

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	c := NewClient(5 * time.Second)
	if c.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", c.Timeout)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
}

func TestNewSOCKS5(t *testing.T) {
	c, dial, err := NewSOCKS5("127.0.0.1:1080", time.Second)
	if err != nil {
		t.Fatalf("NewSOCKS5 failed: %v", err)
	}
	if c == nil || dial == nil {
		t.Fatal("expected client and dial function")
	}
	if c.Timeout != time.Second {
		t.Errorf("Timeout = %v, want 1s", c.Timeout)
	}
}

func TestDialer(t *testing.T) {
	if Dialer() == nil {
		t.Fatal("Dialer() returned nil")
	}
}
