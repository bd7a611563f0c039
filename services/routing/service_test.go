package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docuflow/llm-router/services/health"
	"github.com/docuflow/llm-router/services/providers"
)

// fakeProvider is a scriptable Provider for router tests.
type fakeProvider struct {
	name        string
	healthy     bool
	response    *providers.ChatResponse
	err         error
	healthCalls int
	genCalls    int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GenerateText(ctx context.Context, req *providers.GenerateRequest) (string, error) {
	resp, err := f.GenerateWithTools(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

func (f *fakeProvider) GenerateWithTools(ctx context.Context, req *providers.GenerateRequest) (*providers.ChatResponse, error) {
	f.genCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) bool {
	f.healthCalls++
	return f.healthy
}

func newTestRouter(retries int, adapters ...providers.Provider) *Router {
	return NewRouter(adapters, health.NewCache(time.Minute), retries, zap.NewNop())
}

func TestRouter_Generate(t *testing.T) {
	req := &providers.GenerateRequest{Prompt: "hello"}

	t.Run("empty chain", func(t *testing.T) {
		router := newTestRouter(1)
		_, _, err := router.Generate(context.Background(), req)
		assert.ErrorIs(t, err, ErrNoProviderConfigured)
	})

	t.Run("first healthy provider serves the request", func(t *testing.T) {
		first := &fakeProvider{name: "ollama", healthy: true, response: providers.NewTextResponse("hi")}
		second := &fakeProvider{name: "openai", healthy: true, response: providers.NewTextResponse("never")}

		router := newTestRouter(1, first, second)
		name, resp, err := router.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "ollama", name)
		assert.Equal(t, "hi", resp.Message.Content)
		assert.Equal(t, 0, second.genCalls)
		assert.Equal(t, 0, second.healthCalls, "later providers are not probed")
	})

	t.Run("unhealthy provider is skipped with a reason", func(t *testing.T) {
		down := &fakeProvider{name: "ollama", healthy: false}
		up := &fakeProvider{name: "openai", healthy: true, response: providers.NewTextResponse("served")}

		router := newTestRouter(1, down, up)
		name, _, err := router.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "openai", name)
		assert.Equal(t, 0, down.genCalls)
	})

	t.Run("failed request falls through and marks unhealthy", func(t *testing.T) {
		failing := &fakeProvider{name: "ollama", healthy: true, err: errors.New("boom")}
		up := &fakeProvider{name: "openai", healthy: true, response: providers.NewTextResponse("served")}
		cache := health.NewCache(time.Minute)

		router := NewRouter([]providers.Provider{failing, up}, cache, 1, zap.NewNop())
		name, _, err := router.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "openai", name)

		healthy, ok := cache.Get("ollama")
		assert.True(t, ok)
		assert.False(t, healthy, "request failure overwrites the probe result")
	})

	t.Run("exhaustion aggregates reasons in order", func(t *testing.T) {
		down := &fakeProvider{name: "ollama", healthy: false}
		failing := &fakeProvider{name: "openai", healthy: true, err: errors.New("boom")}

		router := newTestRouter(1, down, failing)
		_, _, err := router.Generate(context.Background(), req)
		require.Error(t, err)

		var unavailable *UnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, []string{"ollama:unhealthy", "openai:request_failed"}, unavailable.Reasons)
		assert.Contains(t, err.Error(), "ollama:unhealthy")
		assert.Contains(t, err.Error(), "openai:request_failed")
	})

	t.Run("retries are constant per provider", func(t *testing.T) {
		failing := &fakeProvider{name: "openai", healthy: true, err: errors.New("boom")}

		router := newTestRouter(3, failing)
		_, _, err := router.Generate(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, 3, failing.genCalls)
	})

	t.Run("cached health result skips the probe", func(t *testing.T) {
		cache := health.NewCache(time.Minute)
		cache.Set("ollama", false)
		down := &fakeProvider{name: "ollama", healthy: true}

		router := NewRouter([]providers.Provider{down}, cache, 1, zap.NewNop())
		_, _, err := router.Generate(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, 0, down.healthCalls, "cache hit means no probe")
		assert.Equal(t, 0, down.genCalls)
	})

	t.Run("probe result is cached", func(t *testing.T) {
		cache := health.NewCache(time.Minute)
		up := &fakeProvider{name: "openai", healthy: true, response: providers.NewTextResponse("ok")}

		router := NewRouter([]providers.Provider{up}, cache, 1, zap.NewNop())
		_, _, err := router.Generate(context.Background(), req)
		require.NoError(t, err)
		_, _, err = router.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 1, up.healthCalls, "second call hits the cache")
	})
}

func TestRouter_AvailableProvider(t *testing.T) {
	t.Run("first healthy name", func(t *testing.T) {
		router := newTestRouter(1,
			&fakeProvider{name: "ollama", healthy: false},
			&fakeProvider{name: "openai", healthy: true},
		)
		name, err := router.AvailableProvider(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "openai", name)
	})

	t.Run("sentinel when none healthy", func(t *testing.T) {
		router := newTestRouter(1, &fakeProvider{name: "ollama", healthy: false})
		name, err := router.AvailableProvider(context.Background())
		assert.ErrorIs(t, err, ErrNoProviderAvailable)
		assert.Equal(t, "", name)
	})
}
