package providers

import (
	"context"
	"time"
)

// Provider represents a unified inference provider interface.
// One implementation exists per backend family (OpenAI-compatible,
// Ollama, Anthropic, Gemini); the router depends only on this interface.
type Provider interface {
	// Name returns a stable provider name used for health-cache keys
	// and error attribution (e.g., "openai", "ollama").
	Name() string

	// GenerateText performs a plain text completion.
	GenerateText(ctx context.Context, req *GenerateRequest) (string, error)

	// GenerateWithTools performs a completion that may return tool calls.
	// The response is always in the canonical shape regardless of the
	// provider's native wire format.
	GenerateWithTools(ctx context.Context, req *GenerateRequest) (*ChatResponse, error)

	// HealthCheck probes the provider endpoint. False means the endpoint
	// should be skipped; it is not an error.
	HealthCheck(ctx context.Context) bool
}

// GenerateRequest is the unified request every adapter translates into
// its provider's native envelope.
type GenerateRequest struct {
	// Messages in canonical form. When empty, Prompt is used as a single
	// user message.
	Messages []ChatMessage `json:"messages,omitempty"`

	// Prompt is a convenience single-turn user message.
	Prompt string `json:"prompt,omitempty"`

	// System is an optional system instruction prepended to Messages.
	System string `json:"system,omitempty"`

	// Model overrides the adapter's configured model when set.
	Model string `json:"model,omitempty"`

	// Tools the model may call.
	Tools []Tool `json:"tools,omitempty"`

	// Timeout for this call. Clamped by each adapter to its configured
	// ceiling: min(requested, configured). Zero means use the ceiling.
	Timeout time.Duration `json:"-"`
}

// ChatMessage is the canonical message shape.
type ChatMessage struct {
	// Role is one of "system", "user", "assistant", "tool".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// Name identifies the tool for role "tool" messages.
	Name string `json:"name,omitempty"`
}

// Tool declares a function the model may call.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a callable function.
type ToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ChatResponse is the canonical response shape every adapter must produce.
type ChatResponse struct {
	Message ResponseMessage `json:"message"`
}

// ResponseMessage holds the assistant turn of a canonical response.
// Empty Content with no tool calls is a valid "answered but empty" result.
type ResponseMessage struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a canonical tool invocation. Arguments is always a
// JSON-encoded string, even when the native format carries an object.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction names the invoked function and its JSON arguments.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewTextResponse builds a canonical response holding only text content.
func NewTextResponse(content string) *ChatResponse {
	return &ChatResponse{Message: ResponseMessage{Content: content}}
}

// Normalized returns the request messages with Prompt and System folded in:
// an optional leading system message followed by Messages, or a single user
// message built from Prompt when Messages is empty.
func (r *GenerateRequest) Normalized() []ChatMessage {
	msgs := r.Messages
	if len(msgs) == 0 && r.Prompt != "" {
		msgs = []ChatMessage{{Role: "user", Content: r.Prompt}}
	}
	if r.System == "" {
		return msgs
	}
	out := make([]ChatMessage, 0, len(msgs)+1)
	out = append(out, ChatMessage{Role: "system", Content: r.System})
	return append(out, msgs...)
}

// ClampTimeout applies the min(requested, ceiling) rule shared by all
// adapters. A zero request timeout means the ceiling applies.
func ClampTimeout(requested, ceiling time.Duration) time.Duration {
	if requested <= 0 || requested > ceiling {
		return ceiling
	}
	return requested
}
