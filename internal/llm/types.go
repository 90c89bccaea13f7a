// Package llm abstracts the chat and embedding providers behind small
// interfaces. Ollama speaks its native API; OpenAI, Gemini and Groq share
// one OpenAI-compatible client pointed at different base URLs.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single turn of a conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`

	// Usage is only set on assistant replies returned by a client, and
	// stays out of the wire encoding of outgoing messages.
	Usage Usage `json:"-"`
}

// Usage is the token accounting a provider reported for one call. Zero
// when the provider omits it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ToolCall is the model asking for a tool invocation. Arguments is the raw
// JSON object the model produced.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Tool describes a callable tool in JSON-schema form.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatClient sends a conversation to a model and returns its reply, which
// may be plain content or tool calls.
type ChatClient interface {
	Provider() string
	Model() string
	// WithModel returns a client identical to this one but targeting a
	// different model. Used when walking a provider's fallback list.
	WithModel(model string) ChatClient
	Chat(ctx context.Context, messages []Message, tools []Tool) (Message, error)
}

// Embedder turns texts into vectors. Output order matches input order.
type Embedder interface {
	Model() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SystemMessage is shorthand for a system turn.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage is shorthand for a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ToolResult builds the tool-role reply to a specific tool call.
func ToolResult(call ToolCall, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: call.ID, Name: call.Name}
}
