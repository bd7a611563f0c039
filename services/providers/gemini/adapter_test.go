package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/llm-router/services/providers"
)

func TestAdapter_GenerateWithTools(t *testing.T) {
	t.Run("URL carries model and key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hi"}]}}]}`))
		}))
		defer server.Close()

		a := NewAdapter(providers.Config{BaseURL: server.URL, APIKey: "test-key"})
		resp, err := a.GenerateWithTools(context.Background(), &providers.GenerateRequest{Prompt: "hello"})
		require.NoError(t, err)
		assert.Equal(t, "hi", resp.Message.Content)
	})

	t.Run("role mapping and system instruction", func(t *testing.T) {
		var captured generateRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
		}))
		defer server.Close()

		a := NewAdapter(providers.Config{BaseURL: server.URL})
		_, err := a.GenerateWithTools(context.Background(), &providers.GenerateRequest{
			System: "be brief",
			Messages: []providers.ChatMessage{
				{Role: "user", Content: "hi"},
				{Role: "assistant", Content: "hello"},
				{Role: "tool", Name: "get_time", Content: "noon"},
			},
		})
		require.NoError(t, err)

		require.NotNil(t, captured.SystemInstruction)
		require.Len(t, captured.SystemInstruction.Parts, 1)
		assert.Equal(t, "be brief", captured.SystemInstruction.Parts[0].Text)

		require.Len(t, captured.Contents, 3)
		assert.Equal(t, "user", captured.Contents[0].Role)
		assert.Equal(t, "model", captured.Contents[1].Role)
		assert.Equal(t, "user", captured.Contents[2].Role)
		assert.Equal(t, "Tool get_time: noon", captured.Contents[2].Parts[0].Text)
	})

	t.Run("tools become function declarations with AUTO mode", func(t *testing.T) {
		var captured generateRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
		}))
		defer server.Close()

		a := NewAdapter(providers.Config{BaseURL: server.URL})
		_, err := a.GenerateWithTools(context.Background(), &providers.GenerateRequest{
			Prompt: "x",
			Tools: []providers.Tool{
				{Type: "function", Function: providers.ToolFunction{Name: "lookup"}},
			},
		})
		require.NoError(t, err)
		require.Len(t, captured.Tools, 1)
		require.Len(t, captured.Tools[0].FunctionDeclarations, 1)
		assert.Equal(t, "lookup", captured.Tools[0].FunctionDeclarations[0].Name)
		require.NotNil(t, captured.ToolConfig)
		assert.Equal(t, "AUTO", captured.ToolConfig.FunctionCallingConfig.Mode)
	})

	t.Run("functionCall maps to canonical call with name as ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[
				{"text":"checking "},
				{"functionCall":{"name":"lookup","args":{"q":"go"}}}
			]}}]}`))
		}))
		defer server.Close()

		a := NewAdapter(providers.Config{BaseURL: server.URL})
		resp, err := a.GenerateWithTools(context.Background(), &providers.GenerateRequest{Prompt: "x"})
		require.NoError(t, err)
		assert.Equal(t, "checking ", resp.Message.Content)
		require.Len(t, resp.Message.ToolCalls, 1)
		tc := resp.Message.ToolCalls[0]
		assert.Equal(t, "lookup", tc.ID)
		assert.Equal(t, "lookup", tc.Function.Name)
		assert.JSONEq(t, `{"q":"go"}`, tc.Function.Arguments)
	})

	t.Run("no candidates is a bad response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		}))
		defer server.Close()

		a := NewAdapter(providers.Config{BaseURL: server.URL})
		_, err := a.GenerateWithTools(context.Background(), &providers.GenerateRequest{Prompt: "x"})
		require.Error(t, err)
		assert.True(t, providers.IsBadResponse(err))
	})

	t.Run("connection failure is unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		a := NewAdapter(providers.Config{BaseURL: server.URL})
		_, err := a.GenerateWithTools(context.Background(), &providers.GenerateRequest{Prompt: "x"})
		require.Error(t, err)
		assert.True(t, providers.IsUnreachable(err))
	})
}

func TestAdapter_HealthCheck(t *testing.T) {
	t.Run("healthy on 200 models listing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/beta/models", r.URL.Path)
			_, _ = w.Write([]byte(`{"models":[]}`))
		}))
		defer server.Close()

		a := NewAdapter(providers.Config{BaseURL: server.URL})
		assert.True(t, a.HealthCheck(context.Background()))
	})

	t.Run("unhealthy on non-200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		a := NewAdapter(providers.Config{BaseURL: server.URL})
		assert.False(t, a.HealthCheck(context.Background()))
	})
}
