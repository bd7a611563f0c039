package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/docuflow/llm-router/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4o-mini"
)

// Adapter implements the Provider interface for any backend speaking the
// OpenAI chat-completions protocol. Several cloud and self-hosted servers
// share this wire shape; the name distinguishes instances.
type Adapter struct {
	name       string
	config     providers.Config
	httpClient *http.Client
}

// NewAdapter creates an OpenAI-compatible adapter. The base URL gets a
// "/v1" suffix when absent so both "https://host" and "https://host/v1"
// configurations work.
func NewAdapter(name string, config providers.Config) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if !strings.HasSuffix(config.BaseURL, "/v1") {
		config.BaseURL += "/v1"
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if name == "" {
		name = "openai"
	}

	return &Adapter{
		name:       name,
		config:     config,
		httpClient: &http.Client{},
	}
}

// Name returns the provider name.
func (a *Adapter) Name() string {
	return a.name
}

// GenerateText performs a plain text completion.
func (a *Adapter) GenerateText(ctx context.Context, req *providers.GenerateRequest) (string, error) {
	resp, err := a.GenerateWithTools(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// GenerateWithTools performs a completion that may return tool calls.
func (a *Adapter) GenerateWithTools(ctx context.Context, req *providers.GenerateRequest) (*providers.ChatResponse, error) {
	chatReq := a.buildChatRequest(req)

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, providers.NewBadResponseError(a.name, "failed to marshal request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, providers.ClampTimeout(req.Timeout, a.config.EffectiveTimeout()))
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewBadResponseError(a.name, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewUnreachableError(a.name, "request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewBadResponseError(a.name, "failed to read response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, providers.NewBadResponseError(a.name, "unexpected status "+httpResp.Status, nil)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, providers.NewBadResponseError(a.name, "failed to unmarshal response", err)
	}

	return a.normalizeResponse(&chatResp)
}

// HealthCheck probes the models-listing endpoint.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, a.config.EffectiveTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	if a.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// buildChatRequest converts the unified request to the OpenAI format.
func (a *Adapter) buildChatRequest(req *providers.GenerateRequest) *chatRequest {
	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	msgs := req.Normalized()
	chatReq := &chatRequest{
		Model:    model,
		Messages: make([]chatMessage, len(msgs)),
	}
	for i, m := range msgs {
		chatReq.Messages[i] = chatMessage{Role: m.Role, Content: m.Content, Name: m.Name}
	}

	if len(req.Tools) > 0 {
		chatReq.Tools = req.Tools
		chatReq.ToolChoice = "auto"
	}

	return chatReq
}

// normalizeResponse converts the native response to the canonical shape.
// Object-typed tool-call arguments are re-encoded as JSON strings.
func (a *Adapter) normalizeResponse(resp *chatResponse) (*providers.ChatResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, providers.NewBadResponseError(a.name, "response has no choices", nil)
	}
	msg := resp.Choices[0].Message
	if msg == nil {
		return nil, providers.NewBadResponseError(a.name, "response choice has no message", nil)
	}

	out := &providers.ChatResponse{Message: providers.ResponseMessage{Content: msg.Content}}
	for _, tc := range msg.ToolCalls {
		out.Message.ToolCalls = append(out.Message.ToolCalls, providers.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: providers.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: coerceArguments(tc.Function.Arguments),
			},
		})
	}
	return out, nil
}

// coerceArguments normalizes tool-call arguments to a JSON-encoded string.
// Compliant servers send a string; some local servers send the object.
func coerceArguments(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// OpenAI wire types.

type chatRequest struct {
	Model      string           `json:"model"`
	Messages   []chatMessage    `json:"messages"`
	Tools      []providers.Tool `json:"tools,omitempty"`
	ToolChoice string           `json:"tool_choice,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message *respMessage `json:"message"`
}

type respMessage struct {
	Content   string         `json:"content"`
	ToolCalls []respToolCall `json:"tool_calls"`
}

type respToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}
