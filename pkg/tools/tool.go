package tools

import "context"

// Handler runs a tool. params are the arguments sent by the agent plus the
// call id under the "tool_call_id" key. The returned value is sent back to
// the agent; a returned error is reported to the agent as a failed call.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Tool describes a client tool the agent can invoke during a conversation.
type Tool struct {
	// Name is the identifier the agent uses to call the tool (e.g., "playExistingSong").
	Name string `json:"name"`

	// Description explains what the tool does.
	Description string `json:"description"`

	// Parameters is the JSON schema of the tool's arguments, as configured
	// on the agent. It is informational; arguments are not validated against it.
	// Example:
	//   map[string]any{
	//       "type": "object",
	//       "properties": map[string]any{
	//           "songQuery": map[string]any{"type": "string"},
	//       },
	//       "required": []string{"songQuery"},
	//   }
	Parameters map[string]any `json:"parameters,omitempty"`

	// Handler is called when the agent invokes this tool.
	Handler Handler `json:"-"`
}
