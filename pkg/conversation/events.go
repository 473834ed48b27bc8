package conversation

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Inbound event types.
const (
	TypeMetadata                = "conversation_initiation_metadata"
	TypeAudio                   = "audio"
	TypeAgentResponse           = "agent_response"
	TypeAgentResponseCorrection = "agent_response_correction"
	TypeUserTranscript          = "user_transcript"
	TypeInterruption            = "interruption"
	TypePing                    = "ping"
	TypeClientToolCall          = "client_tool_call"
)

// Event is an inbound message decoded by DecodeEvent. It is one of
// MetadataEvent, AudioEvent, AgentResponseEvent, AgentResponseCorrectionEvent,
// UserTranscriptEvent, InterruptionEvent, PingEvent or ToolCallEvent.
type Event interface {
	EventType() string
}

// MetadataEvent carries the server-assigned conversation id.
type MetadataEvent struct {
	ConversationID         string
	AgentOutputAudioFormat string
	UserInputAudioFormat   string
}

// AudioEvent carries one chunk of agent speech.
type AudioEvent struct {
	EventID int64
	PCM     []byte
}

// AgentResponseEvent carries the text of an agent reply.
type AgentResponseEvent struct {
	Text string
}

// AgentResponseCorrectionEvent carries a revised agent reply.
type AgentResponseCorrectionEvent struct {
	Original  string
	Corrected string
}

// UserTranscriptEvent carries a transcribed user utterance.
type UserTranscriptEvent struct {
	Text string
}

// InterruptionEvent marks every audio chunk up to EventID as stale.
type InterruptionEvent struct {
	EventID int64
}

// PingEvent must be answered with a pong echoing EventID.
type PingEvent struct {
	EventID int64
	PingMs  int64
}

// ToolCallEvent asks the client to run a registered tool.
type ToolCallEvent struct {
	ToolCallID string
	ToolName   string
	Parameters map[string]any
}

func (MetadataEvent) EventType() string                { return TypeMetadata }
func (AudioEvent) EventType() string                   { return TypeAudio }
func (AgentResponseEvent) EventType() string           { return TypeAgentResponse }
func (AgentResponseCorrectionEvent) EventType() string { return TypeAgentResponseCorrection }
func (UserTranscriptEvent) EventType() string          { return TypeUserTranscript }
func (InterruptionEvent) EventType() string            { return TypeInterruption }
func (PingEvent) EventType() string                    { return TypePing }
func (ToolCallEvent) EventType() string                { return TypeClientToolCall }

// DecodeEvent decodes one inbound websocket message.
// Unknown or missing types return an error wrapping ErrUnknownEvent;
// malformed known events return a *ProtocolError.
func DecodeEvent(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, &ProtocolError{Reason: "message is not valid JSON"}
	}

	root := gjson.ParseBytes(data)
	typ := root.Get("type").String()

	switch typ {
	case TypeMetadata:
		ev := root.Get("conversation_initiation_metadata_event")
		id, err := requiredString(ev, "conversation_id")
		if err != nil {
			return nil, &ProtocolError{Type: typ, Reason: err.Error()}
		}
		return MetadataEvent{
			ConversationID:         id,
			AgentOutputAudioFormat: ev.Get("agent_output_audio_format").String(),
			UserInputAudioFormat:   ev.Get("user_input_audio_format").String(),
		}, nil

	case TypeAudio:
		ev := root.Get("audio_event")
		id, err := eventID(ev.Get("event_id"))
		if err != nil {
			return nil, &ProtocolError{Type: typ, Reason: err.Error()}
		}
		encoded, err := requiredString(ev, "audio_base_64")
		if err != nil {
			return nil, &ProtocolError{Type: typ, Reason: err.Error()}
		}
		pcm, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, &ProtocolError{Type: typ, Reason: fmt.Sprintf("bad audio_base_64: %v", err)}
		}
		return AudioEvent{EventID: id, PCM: pcm}, nil

	case TypeAgentResponse:
		text, err := requiredString(root.Get("agent_response_event"), "agent_response")
		if err != nil {
			return nil, &ProtocolError{Type: typ, Reason: err.Error()}
		}
		return AgentResponseEvent{Text: text}, nil

	case TypeAgentResponseCorrection:
		ev := root.Get("agent_response_correction_event")
		original, err := requiredString(ev, "original_agent_response")
		if err != nil {
			return nil, &ProtocolError{Type: typ, Reason: err.Error()}
		}
		corrected, err := requiredString(ev, "corrected_agent_response")
		if err != nil {
			return nil, &ProtocolError{Type: typ, Reason: err.Error()}
		}
		return AgentResponseCorrectionEvent{Original: original, Corrected: corrected}, nil

	case TypeUserTranscript:
		text, err := requiredString(root.Get("user_transcription_event"), "user_transcript")
		if err != nil {
			return nil, &ProtocolError{Type: typ, Reason: err.Error()}
		}
		return UserTranscriptEvent{Text: text}, nil

	case TypeInterruption:
		id, err := eventID(root.Get("interruption_event.event_id"))
		if err != nil {
			return nil, &ProtocolError{Type: typ, Reason: err.Error()}
		}
		return InterruptionEvent{EventID: id}, nil

	case TypePing:
		ev := root.Get("ping_event")
		id, err := eventID(ev.Get("event_id"))
		if err != nil {
			return nil, &ProtocolError{Type: typ, Reason: err.Error()}
		}
		// ping_ms is null on the first ping of a conversation
		var pingMs int64
		switch ms := ev.Get("ping_ms"); ms.Type {
		case gjson.Number:
			pingMs = ms.Int()
		case gjson.String:
			if pingMs, err = eventID(ms); err != nil {
				return nil, &ProtocolError{Type: typ, Reason: "ping_ms: " + err.Error()}
			}
		}
		return PingEvent{EventID: id, PingMs: pingMs}, nil

	case TypeClientToolCall:
		ev := root.Get("client_tool_call")
		callID, err := requiredString(ev, "tool_call_id")
		if err != nil {
			return nil, &ProtocolError{Type: typ, Reason: err.Error()}
		}
		params := map[string]any{}
		if p := ev.Get("parameters"); p.Exists() && p.Type != gjson.Null {
			m, ok := p.Value().(map[string]any)
			if !ok {
				return nil, &ProtocolError{Type: typ, Reason: "parameters is not an object"}
			}
			params = m
		}
		return ToolCallEvent{
			ToolCallID: callID,
			ToolName:   ev.Get("tool_name").String(),
			Parameters: params,
		}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrUnknownEvent)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, typ)
	}
}

// requiredString returns the string field key of obj.
func requiredString(obj gjson.Result, key string) (string, error) {
	v := obj.Get(key)
	if !v.Exists() {
		return "", fmt.Errorf("missing %s", key)
	}
	if v.Type != gjson.String {
		return "", fmt.Errorf("%s is not a string", key)
	}
	return v.Str, nil
}

// eventID accepts an integer as a JSON number or a numeric string.
func eventID(v gjson.Result) (int64, error) {
	switch v.Type {
	case gjson.Number:
		if v.Num != float64(int64(v.Num)) {
			return 0, fmt.Errorf("event id %s is not an integer", v.Raw)
		}
		return v.Int(), nil
	case gjson.String:
		id, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("event id %q is not an integer", v.Str)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("missing event id")
	}
}
