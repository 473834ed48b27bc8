// Package conversation runs a real-time voice conversation with an
// ElevenLabs Conversational AI agent.
//
// A Session owns one websocket connection, streams microphone audio to the
// agent, plays the agent's audio back through an audioio.Interface, and
// answers the agent's client tool calls from a tools.Registry.
//
// Example usage:
//
//	cfg := conversation.DefaultConfig()
//	cfg.Apply(
//	    conversation.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    conversation.WithAgentID(os.Getenv("ELEVENLABS_AGENT_ID")),
//	)
//
//	session, err := conversation.NewSession(cfg, audio, registry, conversation.InitiationData{},
//	    conversation.Callbacks{
//	        OnAgentResponse: func(text string) { fmt.Println("agent:", text) },
//	    })
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Blocks until the agent hangs up, End is called, or ctx is cancelled.
//	if err := session.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package conversation

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateActive
	StateEnding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Callbacks receive conversation notifications. Every field is optional.
// Callbacks run on a single goroutine in the order the events arrived and
// never block the connection.
type Callbacks struct {
	// OnAgentResponse is called with the text of each agent reply.
	OnAgentResponse func(text string)

	// OnAgentResponseCorrection is called when the agent revises a reply
	// after being interrupted.
	OnAgentResponseCorrection func(original, corrected string)

	// OnUserTranscript is called with each transcribed user utterance.
	OnUserTranscript func(text string)

	// OnLatency is called with the round-trip time reported by agent pings.
	OnLatency func(ms int)

	// OnConversationStarted is called once with the server-assigned
	// conversation id.
	OnConversationStarted func(conversationID string)
}

// InitiationData is sent to the agent once, right after connecting.
type InitiationData struct {
	// ExtraBody is forwarded to a custom LLM as custom_llm_extra_body.
	ExtraBody map[string]any

	// ConfigOverride overrides agent settings (prompt, first message, voice).
	ConfigOverride map[string]any

	// DynamicVariables fill {{placeholders}} in the agent prompt.
	DynamicVariables map[string]any
}
