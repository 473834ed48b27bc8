package conversation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{"https://api.elevenlabs.io", "wss://api.elevenlabs.io/v1/convai/conversation?agent_id=agent+1", false},
		{"http://localhost:8080/", "ws://localhost:8080/v1/convai/conversation?agent_id=agent+1", false},
		{"ftp://example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := publicURL(tt.base, "agent 1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("publicURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("publicURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIClient_SignedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/conversation/get_signed_url" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("agent_id") {
		case "ok":
			w.Write([]byte(`{"signed_url":"wss://example.com/signed"}`))
		case "empty":
			w.Write([]byte(`{}`))
		default:
			http.Error(w, "busy", http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Apply(WithAPIBaseURL(srv.URL), WithAPIKey("k"), WithHTTPClient(srv.Client()))
	client := newAPIClient(cfg)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		got, err := client.SignedURL(ctx, "ok")
		if err != nil {
			t.Fatalf("SignedURL() error = %v", err)
		}
		if got != "wss://example.com/signed" {
			t.Errorf("SignedURL() = %q", got)
		}
	})

	t.Run("missing field", func(t *testing.T) {
		if _, err := client.SignedURL(ctx, "empty"); err == nil {
			t.Error("expected error for missing signed_url")
		}
	})

	t.Run("server error", func(t *testing.T) {
		_, err := client.SignedURL(ctx, "other")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("SignedURL() = %v, want APIError", err)
		}
		if apiErr.StatusCode != http.StatusServiceUnavailable || !apiErr.Retryable {
			t.Errorf("APIError = %+v", apiErr)
		}
		if !IsRetryable(err) {
			t.Error("503 should be retryable")
		}
	})
}
