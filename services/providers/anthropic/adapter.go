package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/docuflow/llm-router/services/providers"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	defaultModel   = "claude-3-5-haiku-latest"
	apiVersion     = "2023-06-01"

	// The API requires max_tokens; this ceiling bounds single responses.
	defaultMaxTokens = 4096
)

// Adapter implements the Provider interface for the Anthropic Messages API.
//
// This family cannot carry a system role inline: all system messages are
// merged into one top-level system field, and tool-role messages become
// synthetic user turns.
type Adapter struct {
	config     providers.Config
	httpClient *http.Client
}

// NewAdapter creates an Anthropic adapter.
func NewAdapter(config providers.Config) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = defaultModel
	}

	return &Adapter{
		config:     config,
		httpClient: &http.Client{},
	}
}

// Name returns the provider name.
func (a *Adapter) Name() string {
	return "anthropic"
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
	apiReq := a.buildRequest(req)

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, providers.NewBadResponseError(a.Name(), "failed to marshal request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, providers.ClampTimeout(req.Timeout, a.config.EffectiveTimeout()))
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewBadResponseError(a.Name(), "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.config.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewUnreachableError(a.Name(), "request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewBadResponseError(a.Name(), "failed to read response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, providers.NewBadResponseError(a.Name(), "unexpected status "+httpResp.Status, nil)
	}

	var apiResp messagesResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, providers.NewBadResponseError(a.Name(), "failed to unmarshal response", err)
	}

	return a.normalizeResponse(&apiResp), nil
}

// HealthCheck verifies the endpoint answers. The Messages API has no
// dedicated health route; a credentialed request with an empty body
// reaching the API at all (any HTTP status) proves the host is up.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, a.config.EffectiveTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/v1/messages", strings.NewReader("{}"))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.config.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}

// buildRequest converts the unified request to the Messages envelope:
// system messages merge into the top-level system field, tool results
// become "Tool {name}: {content}" user turns.
func (a *Adapter) buildRequest(req *providers.GenerateRequest) *messagesRequest {
	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	var systemParts []string
	var msgs []apiMessage
	for _, m := range req.Normalized() {
		switch m.Role {
		case "system":
			systemParts = append(systemParts, m.Content)
		case "tool":
			msgs = append(msgs, apiMessage{
				Role:    "user",
				Content: fmt.Sprintf("Tool %s: %s", m.Name, m.Content),
			})
		default:
			msgs = append(msgs, apiMessage{Role: m.Role, Content: m.Content})
		}
	}

	apiReq := &messagesRequest{
		Model:     model,
		MaxTokens: defaultMaxTokens,
		Messages:  msgs,
		System:    strings.Join(systemParts, "\n"),
	}

	for _, t := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, apiTool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}
	if len(apiReq.Tools) > 0 {
		apiReq.ToolChoice = &toolChoice{Type: "auto"}
	}

	return apiReq
}

// normalizeResponse concatenates text blocks into content and maps
// tool_use blocks into canonical tool calls with JSON-encoded arguments.
func (a *Adapter) normalizeResponse(resp *messagesResponse) *providers.ChatResponse {
	out := &providers.ChatResponse{}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Message.Content += block.Text
		case "tool_use":
			args, _ := json.Marshal(block.Input)
			out.Message.ToolCalls = append(out.Message.ToolCalls, providers.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: providers.ToolCallFunction{
					Name:      block.Name,
					Arguments: string(args),
				},
			})
		}
	}
	return out
}

// Anthropic wire types.

type messagesRequest struct {
	Model      string       `json:"model"`
	MaxTokens  int          `json:"max_tokens"`
	Messages   []apiMessage `json:"messages"`
	System     string       `json:"system,omitempty"`
	Tools      []apiTool    `json:"tools,omitempty"`
	ToolChoice *toolChoice  `json:"tool_choice,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type toolChoice struct {
	Type string `json:"type"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type  string                 `json:"type"`
	Text  string                 `json:"text,omitempty"`
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`
}
