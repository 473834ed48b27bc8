package conversation

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Outbound message types.
const (
	typeInitiation = "conversation_initiation_client_data"
	typePong       = "pong"
	typeToolResult = "client_tool_result"
)

type initiationMessage struct {
	Type                       string         `json:"type"`
	CustomLLMExtraBody         map[string]any `json:"custom_llm_extra_body"`
	ConversationConfigOverride map[string]any `json:"conversation_config_override"`
	DynamicVariables           map[string]any `json:"dynamic_variables"`
}

type userAudioMessage struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

type pongMessage struct {
	Type    string `json:"type"`
	EventID int64  `json:"event_id"`
}

type toolResultMessage struct {
	Type       string `json:"type"`
	ToolCallID string `json:"tool_call_id"`
	Result     string `json:"result"`
	IsError    bool   `json:"is_error"`
}

func newInitiationMessage(d InitiationData) initiationMessage {
	return initiationMessage{
		Type:                       typeInitiation,
		CustomLLMExtraBody:         orEmpty(d.ExtraBody),
		ConversationConfigOverride: orEmpty(d.ConfigOverride),
		DynamicVariables:           orEmpty(d.DynamicVariables),
	}
}

func newUserAudioMessage(frame []byte) userAudioMessage {
	return userAudioMessage{UserAudioChunk: base64.StdEncoding.EncodeToString(frame)}
}

func newPongMessage(eventID int64) pongMessage {
	return pongMessage{Type: typePong, EventID: eventID}
}

func newToolResultMessage(callID, result string, isError bool) toolResultMessage {
	return toolResultMessage{
		Type:       typeToolResult,
		ToolCallID: callID,
		Result:     result,
		IsError:    isError,
	}
}

// toolResultText renders a handler's return value for the agent.
// Empty results become a generic success message.
func toolResultText(toolName string, result any) string {
	var text string
	switch v := result.(type) {
	case nil:
	case string:
		text = v
	case []byte:
		text = string(v)
	case json.RawMessage:
		text = string(v)
	case fmt.Stringer:
		text = v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			text = fmt.Sprint(v)
		} else {
			text = string(data)
		}
	}

	if text == "" {
		return fmt.Sprintf("Client tool: %s called successfully.", toolName)
	}
	return text
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
