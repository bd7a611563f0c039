package openai

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

func TestNewAdapter_BaseURL(t *testing.T) {
	t.Run("appends /v1", func(t *testing.T) {
		a := NewAdapter("openai", providers.Config{BaseURL: "http://example.com"})
		assert.Equal(t, "http://example.com/v1", a.config.BaseURL)
	})

	t.Run("keeps existing /v1", func(t *testing.T) {
		a := NewAdapter("openai", providers.Config{BaseURL: "http://example.com/v1"})
		assert.Equal(t, "http://example.com/v1", a.config.BaseURL)
	})

	t.Run("defaults name", func(t *testing.T) {
		a := NewAdapter("", providers.Config{})
		assert.Equal(t, "openai", a.Name())
	})

	t.Run("keeps custom name", func(t *testing.T) {
		a := NewAdapter("vllm", providers.Config{})
		assert.Equal(t, "vllm", a.Name())
	})
}

func TestAdapter_GenerateWithTools(t *testing.T) {
	t.Run("text response round-trip", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "gpt-4o-mini", req["model"])

			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{
					{"message": map[string]interface{}{"content": "hi there"}},
				},
			})
		}))
		defer server.Close()

		a := NewAdapter("openai", providers.Config{BaseURL: server.URL, APIKey: "test-key"})
		resp, err := a.GenerateWithTools(context.Background(), &providers.GenerateRequest{Prompt: "hello"})
		require.NoError(t, err)
		assert.Equal(t, "hi there", resp.Message.Content)
		assert.Empty(t, resp.Message.ToolCalls)
	})

	t.Run("tool_choice auto sent only with tools", func(t *testing.T) {
		var captured map[string]interface{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{
					{"message": map[string]interface{}{"content": "ok"}},
				},
			})
		}))
		defer server.Close()

		a := NewAdapter("openai", providers.Config{BaseURL: server.URL})

		_, err := a.GenerateWithTools(context.Background(), &providers.GenerateRequest{Prompt: "x"})
		require.NoError(t, err)
		assert.NotContains(t, captured, "tool_choice")

		_, err = a.GenerateWithTools(context.Background(), &providers.GenerateRequest{
			Prompt: "x",
			Tools: []providers.Tool{
				{Type: "function", Function: providers.ToolFunction{Name: "lookup"}},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "auto", captured["tool_choice"])
	})

	t.Run("string arguments pass through", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"","tool_calls":[
				{"id":"call_1","type":"function","function":{"name":"lookup","arguments":"{\"q\":\"go\"}"}}
			]}}]}`))
		}))
		defer server.Close()

		a := NewAdapter("openai", providers.Config{BaseURL: server.URL})
		resp, err := a.GenerateWithTools(context.Background(), &providers.GenerateRequest{Prompt: "x"})
		require.NoError(t, err)
		require.Len(t, resp.Message.ToolCalls, 1)
		tc := resp.Message.ToolCalls[0]
		assert.Equal(t, "call_1", tc.ID)
		assert.Equal(t, "lookup", tc.Function.Name)
		assert.JSONEq(t, `{"q":"go"}`, tc.Function.Arguments)
	})

	t.Run("object arguments are re-encoded as a string", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"","tool_calls":[
				{"id":"call_2","type":"function","function":{"name":"lookup","arguments":{"q":"go"}}}
			]}}]}`))
		}))
		defer server.Close()

		a := NewAdapter("openai", providers.Config{BaseURL: server.URL})
		resp, err := a.GenerateWithTools(context.Background(), &providers.GenerateRequest{Prompt: "x"})
		require.NoError(t, err)
		require.Len(t, resp.Message.ToolCalls, 1)
		assert.JSONEq(t, `{"q":"go"}`, resp.Message.ToolCalls[0].Function.Arguments)
	})

	t.Run("non-200 is a bad response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		a := NewAdapter("openai", providers.Config{BaseURL: server.URL})
		_, err := a.GenerateWithTools(context.Background(), &providers.GenerateRequest{Prompt: "x"})
		require.Error(t, err)
		assert.True(t, providers.IsBadResponse(err))
		assert.False(t, providers.IsUnreachable(err))
	})

	t.Run("empty choices is a bad response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer server.Close()

		a := NewAdapter("openai", providers.Config{BaseURL: server.URL})
		_, err := a.GenerateWithTools(context.Background(), &providers.GenerateRequest{Prompt: "x"})
		require.Error(t, err)
		assert.True(t, providers.IsBadResponse(err))
	})

	t.Run("connection failure is unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		a := NewAdapter("openai", providers.Config{BaseURL: server.URL})
		_, err := a.GenerateWithTools(context.Background(), &providers.GenerateRequest{Prompt: "x"})
		require.Error(t, err)
		assert.True(t, providers.IsUnreachable(err))
	})
}

func TestAdapter_HealthCheck(t *testing.T) {
	t.Run("healthy on 200 models listing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/models", r.URL.Path)
			_, _ = w.Write([]byte(`{"data":[]}`))
		}))
		defer server.Close()

		a := NewAdapter("openai", providers.Config{BaseURL: server.URL})
		assert.True(t, a.HealthCheck(context.Background()))
	})

	t.Run("unhealthy on non-200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		a := NewAdapter("openai", providers.Config{BaseURL: server.URL})
		assert.False(t, a.HealthCheck(context.Background()))
	})

	t.Run("unhealthy when unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		a := NewAdapter("openai", providers.Config{BaseURL: server.URL})
		assert.False(t, a.HealthCheck(context.Background()))
	})
}
