package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/docuflow/llm-router/services/providers"
	"go.uber.org/zap"
)

const (
	// Explicit IPv4 loopback avoids IPv6 resolution issues on some hosts.
	defaultBaseURL = "http://127.0.0.1:11434"
	defaultModel   = "llama3.2:3b"
)

// Adapter implements the Provider interface for a local Ollama server.
//
// Unlike the cloud families it distinguishes two failure kinds: the server
// being unreachable (propagated immediately) and a bad response such as a
// missing model, which triggers a fallback across the configured model
// candidates within the same call.
type Adapter struct {
	config     providers.Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAdapter creates an Ollama adapter.
func NewAdapter(config providers.Config, logger *zap.Logger) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Adapter{
		config:     config,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Name returns the provider name.
func (a *Adapter) Name() string {
	return "ollama"
}

// GenerateText performs a plain text completion.
func (a *Adapter) GenerateText(ctx context.Context, req *providers.GenerateRequest) (string, error) {
	resp, err := a.GenerateWithTools(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// GenerateWithTools performs a completion, falling back through the
// configured model candidates when a model errors with a bad response
// (typically "model not found" for a model that is not installed).
// Transport failures are propagated immediately without trying other
// models: if the server is down, no model will answer.
func (a *Adapter) GenerateWithTools(ctx context.Context, req *providers.GenerateRequest) (*providers.ChatResponse, error) {
	candidates := a.modelCandidates(req.Model)

	var lastErr error
	for i, model := range candidates {
		resp, err := a.chat(ctx, model, req)
		if err == nil {
			return resp, nil
		}
		if providers.IsUnreachable(err) {
			return nil, err
		}
		lastErr = err
		if i < len(candidates)-1 {
			msg := "ollama model failed, trying next candidate"
			if IsModelNotFound(err) {
				msg = "ollama model not installed, trying next candidate"
			}
			a.logger.Warn(msg,
				zap.String("model", model),
				zap.String("next", candidates[i+1]),
				zap.Error(err))
		}
	}
	return nil, lastErr
}

// HealthCheck probes the local tags endpoint.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, a.config.EffectiveTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// chat performs a single non-streaming chat call against one model.
func (a *Adapter) chat(ctx context.Context, model string, req *providers.GenerateRequest) (*providers.ChatResponse, error) {
	chatReq := chatRequest{
		Model:    model,
		Messages: req.Normalized(),
		Stream:   false,
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = req.Tools
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, providers.NewBadResponseError(a.Name(), "failed to marshal request", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, providers.ClampTimeout(req.Timeout, a.config.EffectiveTimeout()))
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, a.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewBadResponseError(a.Name(), "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewUnreachableError(a.Name(), "server unreachable", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewBadResponseError(a.Name(), "failed to read response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.errorFromBody(httpResp.Status, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, providers.NewBadResponseError(a.Name(), "failed to unmarshal response", err)
	}
	if chatResp.Message == nil {
		return nil, providers.NewBadResponseError(a.Name(), "response has no message", nil)
	}

	out := &providers.ChatResponse{Message: providers.ResponseMessage{Content: chatResp.Message.Content}}
	for _, tc := range chatResp.Message.ToolCalls {
		args, _ := json.Marshal(tc.Function.Arguments)
		out.Message.ToolCalls = append(out.Message.ToolCalls, providers.ToolCall{
			ID:   tc.Function.Name,
			Type: "function",
			Function: providers.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: string(args),
			},
		})
	}
	return out, nil
}

// errorFromBody builds a bad-response error from a non-2xx body, keeping
// the server's own message when present so "model ... not found" stays
// recognizable to callers inspecting the error text.
func (a *Adapter) errorFromBody(status string, body []byte) *providers.ProviderError {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return providers.NewBadResponseError(a.Name(), apiErr.Error, nil)
	}
	return providers.NewBadResponseError(a.Name(), "chat request failed: "+status, nil)
}

// IsModelNotFound reports whether err carries the Ollama missing-model
// signal. The server has no structured code for it, only the message.
func IsModelNotFound(err error) bool {
	if err == nil || !providers.IsBadResponse(err) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "model") && strings.Contains(msg, "not found")
}

// modelCandidates returns the ordered model chain for one call. An
// explicit request model is tried first, then the configured fallbacks.
func (a *Adapter) modelCandidates(requested string) []string {
	var out []string
	if requested != "" {
		out = append(out, requested)
	}
	if len(a.config.ModelCandidates) > 0 {
		for _, m := range a.config.ModelCandidates {
			if m != "" && m != requested {
				out = append(out, m)
			}
		}
	} else if a.config.Model != requested {
		out = append(out, a.config.Model)
	}
	if len(out) == 0 {
		out = []string{a.config.Model}
	}
	return out
}

// Ollama wire types.

type chatRequest struct {
	Model    string                  `json:"model"`
	Messages []providers.ChatMessage `json:"messages"`
	Stream   bool                    `json:"stream"`
	Tools    []providers.Tool        `json:"tools,omitempty"`
	Format   string                  `json:"format,omitempty"`
}

type chatResponse struct {
	Message *respMessage `json:"message"`
}

type respMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []respToolCall `json:"tool_calls"`
}

type respToolCall struct {
	Function struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	} `json:"function"`
}

type apiError struct {
	Error string `json:"error"`
}
