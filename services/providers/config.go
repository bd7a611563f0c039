package providers

import "time"

// Config holds the connection parameters shared by all adapter families.
// Built from a resolved provider spec; adapters never read the environment.
type Config struct {
	// APIKey for authentication. Empty for local providers.
	APIKey string

	// BaseURL of the provider endpoint.
	BaseURL string

	// Model is the default model identifier.
	Model string

	// ModelCandidates is the ordered model fallback chain. Only the
	// Ollama family consults entries past the first.
	ModelCandidates []string

	// Timeout is the per-call ceiling; request timeouts are clamped to it.
	Timeout time.Duration
}

// DefaultTimeout is applied when a config carries no ceiling.
const DefaultTimeout = 60 * time.Second

// EffectiveTimeout returns the configured ceiling, or DefaultTimeout.
func (c Config) EffectiveTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}
