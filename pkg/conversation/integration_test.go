//go:build integration

package conversation

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/selalipop/milo-firmware/pkg/audioio"
)

// These tests require real credentials and talk to the live service.
// Run with: go test -tags=integration -v ./pkg/conversation/...

func TestSessionIntegration(t *testing.T) {
	apiKey := os.Getenv("ELEVENLABS_API_KEY")
	agentID := os.Getenv("ELEVENLABS_AGENT_ID")

	if apiKey == "" || agentID == "" {
		t.Skip("ELEVENLABS_API_KEY and ELEVENLABS_AGENT_ID required")
	}

	t.Run("connect and end", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Apply(
			WithAPIKey(apiKey),
			WithAgentID(agentID),
			WithRequiresAuth(true),
		)

		var mu sync.Mutex
		var responses []string

		session, err := NewSession(cfg, audioio.NewNull(nil), nil, InitiationData{}, Callbacks{
			OnAgentResponse: func(text string) {
				mu.Lock()
				responses = append(responses, text)
				mu.Unlock()
			},
		})
		if err != nil {
			t.Fatalf("NewSession failed: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- session.Start(ctx) }()

		deadline := time.Now().Add(10 * time.Second)
		for session.ConversationID() == "" && time.Now().Before(deadline) {
			time.Sleep(100 * time.Millisecond)
		}
		if session.ConversationID() == "" {
			t.Fatal("no conversation metadata received")
		}

		// Give the agent time to speak its first message.
		time.Sleep(3 * time.Second)

		if err := session.End(); err != nil {
			t.Errorf("End failed: %v", err)
		}
		if err := <-done; err != nil {
			t.Errorf("Start returned %v", err)
		}
		if session.State() != StateClosed {
			t.Errorf("state = %v, want closed", session.State())
		}

		mu.Lock()
		t.Logf("conversation %s, %d agent responses", session.ConversationID(), len(responses))
		mu.Unlock()
	})
}
