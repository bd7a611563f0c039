package inference

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/docuflow/llm-router/config"
	"github.com/docuflow/llm-router/models"
	"github.com/docuflow/llm-router/services/health"
	"github.com/docuflow/llm-router/services/policy"
	"github.com/docuflow/llm-router/services/providers"
	"github.com/docuflow/llm-router/services/routing"
)

// ErrorCodeOffline is the stable error code callers switch on when no
// provider could serve a request.
const ErrorCodeOffline = "AI_OFFLINE"

// Result is what every chat call returns. It never carries an error;
// failure is expressed as OK=false with a message and stable code so
// callers can degrade without wrapping the call in error handling.
type Result struct {
	OK        bool                    `json:"ok"`
	Provider  string                  `json:"provider,omitempty"`
	Response  *providers.ChatResponse `json:"response,omitempty"`
	Message   string                  `json:"message,omitempty"`
	ErrorCode string                  `json:"error_code,omitempty"`
}

// ProviderSummary is the credential-free view of one configured
// provider exposed by the listing endpoint.
type ProviderSummary struct {
	Type      string `json:"type"`
	Priority  int    `json:"priority"`
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	HasAPIKey bool   `json:"has_api_key"`
	TimeoutS  int    `json:"timeout_s"`
}

// ProviderHealth is one entry of a health snapshot.
type ProviderHealth struct {
	Provider string `json:"provider"`
	Healthy  bool   `json:"healthy"`
}

// DecisionRecorder receives routing decisions. Recording is
// fire-and-forget; the facade ignores its error.
type DecisionRecorder interface {
	Record(decision *models.RoutingDecision) error
}

// nopRecorder is used when no decision store is configured.
type nopRecorder struct{}

func (nopRecorder) Record(*models.RoutingDecision) error { return nil }

// Service is the single entry point collaborators call. It owns policy
// resolution, spec filtering, adapter construction, and routing, and it
// guarantees no error or panic escapes.
type Service struct {
	providersCfg *config.ProvidersConfig
	routingCfg   *config.RoutingConfig
	policyDoc    *policy.Document
	cache        *health.Cache
	recorder     DecisionRecorder
	logger       *zap.Logger
}

// NewService creates the facade. recorder may be nil.
func NewService(
	providersCfg *config.ProvidersConfig,
	routingCfg *config.RoutingConfig,
	policyDoc *policy.Document,
	cache *health.Cache,
	recorder DecisionRecorder,
	logger *zap.Logger,
) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		providersCfg: providersCfg,
		routingCfg:   routingCfg,
		policyDoc:    policyDoc,
		cache:        cache,
		recorder:     recorder,
		logger:       logger,
	}
}

// ChatWithFallback routes one chat request through the policy-filtered
// provider chain. It never returns an error: configuration problems,
// exhausted chains, and even panics all collapse to an offline Result.
func (s *Service) ChatWithFallback(ctx context.Context, tenant, role string, req *providers.GenerateRequest) (result Result) {
	start := time.Now()
	decision := models.NewRoutingDecision(tenant, role)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during chat routing",
				zap.Any("panic", r),
				zap.String("tenant", tenant))
			result = offlineResult("AI provider error")
		}
		decision.LatencyMs = time.Since(start).Milliseconds()
		if result.OK {
			decision.Provider = result.Provider
			decision.Outcome = models.OutcomeSuccess
		} else {
			decision.Outcome = models.OutcomeFailure
			decision.ErrorCode = result.ErrorCode
		}
		// Fire and forget. The recorder drops on overflow; the chat
		// path never waits on it.
		_ = s.recorder.Record(decision)
	}()

	router, err := s.buildRouter(tenant, role)
	if err != nil {
		s.logger.Warn("could not build provider chain",
			zap.String("tenant", tenant), zap.Error(err))
		return offlineResult("AI provider misconfigured")
	}

	name, resp, err := router.Generate(ctx, req)
	if err != nil {
		var unavailable *routing.UnavailableError
		if errors.As(err, &unavailable) {
			decision.Reasons = unavailable.Reasons
		}
		s.logger.Warn("no provider could serve request",
			zap.String("tenant", tenant), zap.Error(err))
		return offlineResult("AI providers are currently unavailable")
	}

	return Result{OK: true, Provider: name, Response: resp}
}

// ProviderSummaries lists the providers the given identity may use,
// in routing order, without credentials.
func (s *Service) ProviderSummaries(tenant, role string) ([]ProviderSummary, error) {
	specs, err := s.filteredSpecs(tenant, role)
	if err != nil {
		return nil, err
	}

	summaries := make([]ProviderSummary, 0, len(specs))
	for _, spec := range specs {
		summaries = append(summaries, ProviderSummary{
			Type:      spec.Type,
			Priority:  spec.Priority,
			BaseURL:   spec.BaseURL,
			Model:     spec.Model,
			HasAPIKey: spec.APIKey != "",
			TimeoutS:  spec.TimeoutS,
		})
	}
	return summaries, nil
}

// HealthSnapshot probes every provider the identity may use and reports
// a point-in-time healthy flag per provider. Probes go through the
// shared cache, so a snapshot is at most one TTL stale.
func (s *Service) HealthSnapshot(ctx context.Context, tenant, role string) ([]ProviderHealth, error) {
	specs, err := s.filteredSpecs(tenant, role)
	if err != nil {
		return nil, err
	}

	adapters := routing.BuildAdapters(specs, s.providersCfg.Ollama.Models, s.logger)
	snapshot := make([]ProviderHealth, 0, len(adapters))
	for _, adapter := range adapters {
		name := adapter.Name()
		healthy, ok := s.cache.Get(name)
		if !ok {
			healthy = adapter.HealthCheck(ctx)
			s.cache.Set(name, healthy)
		}
		snapshot = append(snapshot, ProviderHealth{Provider: name, Healthy: healthy})
	}
	return snapshot, nil
}

func (s *Service) filteredSpecs(tenant, role string) ([]routing.ProviderSpec, error) {
	specs, err := routing.ResolveSpecs(s.providersCfg)
	if err != nil {
		return nil, err
	}
	rule := s.policyDoc.Resolve(tenant, role)
	return routing.FilterSpecs(specs, rule, role), nil
}

func (s *Service) buildRouter(tenant, role string) (*routing.Router, error) {
	specs, err := s.filteredSpecs(tenant, role)
	if err != nil {
		return nil, err
	}
	adapters := routing.BuildAdapters(specs, s.providersCfg.Ollama.Models, s.logger)
	return routing.NewRouter(adapters, s.cache, s.routingCfg.Retries, s.logger), nil
}

func offlineResult(message string) Result {
	return Result{OK: false, Message: message, ErrorCode: ErrorCodeOffline}
}
