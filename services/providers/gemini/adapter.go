package gemini

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
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"
)

// Adapter implements the Provider interface for the Gemini generateContent
// API. This family uses a contents/parts envelope with a "model" role for
// assistant turns and a dedicated system-instruction field.
type Adapter struct {
	config     providers.Config
	httpClient *http.Client
}

// NewAdapter creates a Gemini adapter.
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
	return "gemini"
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
	model := req.Model
	if model == "" {
		model = a.config.Model
	}
	apiReq := a.buildRequest(req)

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, providers.NewBadResponseError(a.Name(), "failed to marshal request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, providers.ClampTimeout(req.Timeout, a.config.EffectiveTimeout()))
	defer cancel()

	url := fmt.Sprintf("%s/v1/beta/models/%s:generateContent?key=%s", a.config.BaseURL, model, a.config.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewBadResponseError(a.Name(), "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var apiResp generateResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, providers.NewBadResponseError(a.Name(), "failed to unmarshal response", err)
	}

	return a.normalizeResponse(&apiResp)
}

// HealthCheck probes the models-listing endpoint.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, a.config.EffectiveTimeout())
	defer cancel()

	url := fmt.Sprintf("%s/v1/beta/models?key=%s", a.config.BaseURL, a.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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

// buildRequest converts the unified request to the contents/parts
// envelope: assistant maps to the "model" role, system messages fold
// into systemInstruction, tools get a functionDeclarations wrapper.
func (a *Adapter) buildRequest(req *providers.GenerateRequest) *generateRequest {
	var systemParts []geminiPart
	apiReq := &generateRequest{}

	for _, m := range req.Normalized() {
		switch m.Role {
		case "system":
			systemParts = append(systemParts, geminiPart{Text: m.Content})
		case "assistant":
			apiReq.Contents = append(apiReq.Contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: m.Content}},
			})
		case "tool":
			apiReq.Contents = append(apiReq.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: fmt.Sprintf("Tool %s: %s", m.Name, m.Content)}},
			})
		default:
			apiReq.Contents = append(apiReq.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: m.Content}},
			})
		}
	}

	if len(systemParts) > 0 {
		apiReq.SystemInstruction = &geminiContent{Parts: systemParts}
	}

	if len(req.Tools) > 0 {
		decls := make([]functionDeclaration, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = functionDeclaration{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			}
		}
		apiReq.Tools = []geminiTool{{FunctionDeclarations: decls}}
		apiReq.ToolConfig = &toolConfig{FunctionCallingConfig: functionCallingConfig{Mode: "AUTO"}}
	}

	return apiReq
}

// normalizeResponse reads the first candidate's parts, concatenating text
// parts and translating functionCall parts into canonical tool calls. The
// API issues no call IDs, so the function name doubles as a synthetic one.
func (a *Adapter) normalizeResponse(resp *generateResponse) (*providers.ChatResponse, error) {
	if len(resp.Candidates) == 0 {
		return nil, providers.NewBadResponseError(a.Name(), "response has no candidates", nil)
	}

	out := &providers.ChatResponse{}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Message.Content += part.Text
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			out.Message.ToolCalls = append(out.Message.ToolCalls, providers.ToolCall{
				ID:   part.FunctionCall.Name,
				Type: "function",
				Function: providers.ToolCallFunction{
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				},
			})
		}
	}
	return out, nil
}

// Gemini wire types.

type generateRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Tools             []geminiTool    `json:"tools,omitempty"`
	ToolConfig        *toolConfig     `json:"toolConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text         string        `json:"text,omitempty"`
	FunctionCall *functionCall `json:"functionCall,omitempty"`
}

type functionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type geminiTool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type toolConfig struct {
	FunctionCallingConfig functionCallingConfig `json:"functionCallingConfig"`
}

type functionCallingConfig struct {
	Mode string `json:"mode"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content geminiContent `json:"content"`
}
