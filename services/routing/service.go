package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/docuflow/llm-router/services/health"
	"github.com/docuflow/llm-router/services/providers"
)

// ErrNoProviderConfigured is returned when routing is attempted with an
// empty provider list, either because nothing is configured or because
// policy filtered everything out.
var ErrNoProviderConfigured = errors.New("no AI provider configured")

// ErrNoProviderAvailable is returned by AvailableProvider when no
// provider in the chain passes its health check.
var ErrNoProviderAvailable = errors.New("no AI provider available")

// UnavailableError aggregates the per-provider failure reasons after the
// full priority chain is exhausted.
type UnavailableError struct {
	Reasons []string
}

func (e *UnavailableError) Error() string {
	if len(e.Reasons) == 0 {
		return "all AI providers unavailable"
	}
	return "all AI providers unavailable: " + strings.Join(e.Reasons, ", ")
}

// Router walks a priority-ordered provider chain, probing health and
// failing over until one call succeeds. A Router is request-scoped; its
// adapter list is already policy-filtered. The health cache it consults
// may be shared across requests.
type Router struct {
	adapters []providers.Provider
	cache    *health.Cache
	retries  int
	logger   *zap.Logger
}

// NewRouter creates a router for one ordered adapter chain. retries is
// clamped to at least one attempt per provider.
func NewRouter(adapters []providers.Provider, cache *health.Cache, retries int, logger *zap.Logger) *Router {
	if retries < 1 {
		retries = 1
	}
	return &Router{
		adapters: adapters,
		cache:    cache,
		retries:  retries,
		logger:   logger,
	}
}

// Generate routes one request through the chain. It returns the name of
// the provider that served it alongside the normalized response. Every
// skipped or failed provider contributes a reason of the form
// "{name}:unhealthy" or "{name}:request_failed".
func (r *Router) Generate(ctx context.Context, req *providers.GenerateRequest) (string, *providers.ChatResponse, error) {
	if len(r.adapters) == 0 {
		return "", nil, ErrNoProviderConfigured
	}

	var reasons []string
	for _, adapter := range r.adapters {
		name := adapter.Name()

		if !r.isHealthy(ctx, adapter) {
			r.logger.Debug("provider skipped as unhealthy", zap.String("provider", name))
			reasons = append(reasons, fmt.Sprintf("%s:unhealthy", name))
			continue
		}

		resp, err := r.attempt(ctx, adapter, req)
		if err != nil {
			r.logger.Warn("provider request failed",
				zap.String("provider", name),
				zap.Int("attempts", r.retries),
				zap.Error(err))
			// A provider that just failed a live request is not
			// healthy regardless of what its probe said.
			r.cache.Set(name, false)
			reasons = append(reasons, fmt.Sprintf("%s:request_failed", name))
			continue
		}

		r.logger.Info("request routed", zap.String("provider", name))
		return name, resp, nil
	}

	return "", nil, &UnavailableError{Reasons: reasons}
}

// AvailableProvider returns the name of the first healthy provider in
// priority order, or ErrNoProviderAvailable when none responds.
func (r *Router) AvailableProvider(ctx context.Context) (string, error) {
	for _, adapter := range r.adapters {
		if r.isHealthy(ctx, adapter) {
			return adapter.Name(), nil
		}
	}
	return "", ErrNoProviderAvailable
}

// isHealthy consults the cache first and probes only on a miss or an
// expired entry. Probe results are cached either way.
func (r *Router) isHealthy(ctx context.Context, adapter providers.Provider) bool {
	name := adapter.Name()
	if healthy, ok := r.cache.Get(name); ok {
		return healthy
	}
	healthy := adapter.HealthCheck(ctx)
	r.cache.Set(name, healthy)
	return healthy
}

// attempt calls the provider up to the configured retry count. Attempts
// are back-to-back; the per-call timeout inside the adapter bounds each.
func (r *Router) attempt(ctx context.Context, adapter providers.Provider, req *providers.GenerateRequest) (*providers.ChatResponse, error) {
	var lastErr error
	for i := 0; i < r.retries; i++ {
		resp, err := adapter.GenerateWithTools(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}
