package routing

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docuflow/llm-router/config"
	"github.com/docuflow/llm-router/services/policy"
	"github.com/docuflow/llm-router/services/providers"
	"github.com/docuflow/llm-router/services/providers/anthropic"
	"github.com/docuflow/llm-router/services/providers/gemini"
	"github.com/docuflow/llm-router/services/providers/ollama"
	"github.com/docuflow/llm-router/services/providers/openai"
)

// ProviderSpec describes one configured provider before any adapter is
// built from it. Specs are data only; they carry everything needed to
// construct an adapter and to filter by policy.
type ProviderSpec struct {
	Type     string `json:"type"`
	Priority int    `json:"priority"`
	BaseURL  string `json:"base_url"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
	TimeoutS int    `json:"timeout_s"`
}

// rawSpec is the structured configuration shape. "url" is accepted as an
// alias for "base_url".
type rawSpec struct {
	Type     string `json:"type"`
	Priority int    `json:"priority"`
	BaseURL  string `json:"base_url"`
	URL      string `json:"url"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
	TimeoutS int    `json:"timeout_s"`
}

// ResolveSpecs produces the ordered provider list from configuration.
// The structured JSON surface wins when present; otherwise the legacy
// ordered type list is expanded with per-family settings. The result is
// sorted by ascending priority, stably, so equal priorities keep their
// configured order.
func ResolveSpecs(cfg *config.ProvidersConfig) ([]ProviderSpec, error) {
	var specs []ProviderSpec

	if cfg.SpecsJSON != "" {
		var raws []rawSpec
		if err := json.Unmarshal([]byte(cfg.SpecsJSON), &raws); err != nil {
			return nil, fmt.Errorf("parse LLM_PROVIDERS_JSON: %w", err)
		}
		for i, raw := range raws {
			if raw.Type == "" {
				return nil, fmt.Errorf("provider spec %d: missing type", i)
			}
			baseURL := raw.BaseURL
			if baseURL == "" {
				baseURL = raw.URL
			}
			specs = append(specs, ProviderSpec{
				Type:     strings.ToLower(strings.TrimSpace(raw.Type)),
				Priority: raw.Priority,
				BaseURL:  baseURL,
				Model:    raw.Model,
				APIKey:   raw.APIKey,
				TimeoutS: raw.TimeoutS,
			})
		}
	} else {
		for i, name := range cfg.Order {
			spec, err := familySpec(cfg, strings.ToLower(strings.TrimSpace(name)))
			if err != nil {
				return nil, err
			}
			spec.Priority = i
			specs = append(specs, spec)
		}
	}

	sort.SliceStable(specs, func(i, j int) bool {
		return specs[i].Priority < specs[j].Priority
	})
	return specs, nil
}

// familySpec expands a legacy provider-type name into a full spec using
// the family settings from configuration.
func familySpec(cfg *config.ProvidersConfig, name string) (ProviderSpec, error) {
	switch name {
	case "ollama":
		model := ""
		if len(cfg.Ollama.Models) > 0 {
			model = cfg.Ollama.Models[0]
		}
		return ProviderSpec{
			Type:     name,
			BaseURL:  cfg.Ollama.BaseURL,
			Model:    model,
			TimeoutS: int(cfg.Ollama.Timeout / time.Second),
		}, nil
	case "openai", "azure":
		return ProviderSpec{
			Type:     name,
			BaseURL:  cfg.OpenAI.BaseURL,
			Model:    cfg.OpenAI.Model,
			APIKey:   cfg.OpenAI.APIKey,
			TimeoutS: int(cfg.OpenAI.Timeout / time.Second),
		}, nil
	case "anthropic":
		return ProviderSpec{
			Type:     name,
			BaseURL:  cfg.Anthropic.BaseURL,
			Model:    cfg.Anthropic.Model,
			APIKey:   cfg.Anthropic.APIKey,
			TimeoutS: int(cfg.Anthropic.Timeout / time.Second),
		}, nil
	case "gemini":
		return ProviderSpec{
			Type:     name,
			BaseURL:  cfg.Gemini.BaseURL,
			Model:    cfg.Gemini.Model,
			APIKey:   cfg.Gemini.APIKey,
			TimeoutS: int(cfg.Gemini.Timeout / time.Second),
		}, nil
	default:
		// Local OpenAI-compatible servers (vllm, lmstudio, llamacpp)
		// have no family env surface; configure them via the
		// structured JSON list instead.
		return ProviderSpec{}, fmt.Errorf("unknown provider type %q in LLM_PROVIDER_ORDER", name)
	}
}

// FilterSpecs drops every spec the resolved policy rule forbids for the
// given role. Order is preserved.
func FilterSpecs(specs []ProviderSpec, rule policy.Rule, role string) []ProviderSpec {
	var allowed []ProviderSpec
	for _, spec := range specs {
		if policy.IsProviderAllowed(rule, role, spec.Type, spec.BaseURL) {
			allowed = append(allowed, spec)
		}
	}
	return allowed
}

// Timeout returns the spec's timeout as a duration, zero when unset.
func (s ProviderSpec) Timeout() time.Duration {
	if s.TimeoutS <= 0 {
		return 0
	}
	return time.Duration(s.TimeoutS) * time.Second
}

// BuildAdapters constructs one provider adapter per spec, in spec order.
// Specs with an unknown type are skipped with a warning rather than
// failing the whole request.
func BuildAdapters(specs []ProviderSpec, fallbackModels []string, logger *zap.Logger) []providers.Provider {
	var adapters []providers.Provider
	for _, spec := range specs {
		adapter := buildAdapter(spec, fallbackModels, logger)
		if adapter == nil {
			logger.Warn("skipping provider with unknown type",
				zap.String("type", spec.Type))
			continue
		}
		adapters = append(adapters, adapter)
	}
	return adapters
}

func buildAdapter(spec ProviderSpec, fallbackModels []string, logger *zap.Logger) providers.Provider {
	pc := providers.Config{
		APIKey:  spec.APIKey,
		BaseURL: spec.BaseURL,
		Model:   spec.Model,
		Timeout: spec.Timeout(),
	}

	switch spec.Type {
	case "ollama":
		pc.ModelCandidates = fallbackModels
		return ollama.NewAdapter(pc, logger)
	case "openai", "azure", "vllm", "lmstudio", "llamacpp":
		// All four speak the OpenAI-compatible wire shape; the name
		// keeps the configured type for routing reasons and summaries.
		return openai.NewAdapter(spec.Type, pc)
	case "anthropic":
		return anthropic.NewAdapter(pc)
	case "gemini":
		return gemini.NewAdapter(pc)
	default:
		return nil
	}
}
