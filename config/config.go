package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration. It is built
// once at startup and treated as immutable; the router re-reads nothing
// from the environment afterwards.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Providers   ProvidersConfig
	Routing     RoutingConfig
	Policy      PolicyConfig
	Auth        AuthConfig
	LogLevel    string
	Environment string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration for the decision store.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// ProvidersConfig holds the per-family provider settings used by the
// legacy resolution surface.
type ProvidersConfig struct {
	// SpecsJSON is the structured configuration surface: a JSON list of
	// provider specs. When set it takes precedence over Order.
	SpecsJSON string

	// Order is the legacy surface: an ordered list of provider-type
	// names, each expanded with the family settings below.
	Order []string

	Ollama    OllamaConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Gemini    GeminiConfig
}

// OllamaConfig holds local-inference family settings.
type OllamaConfig struct {
	BaseURL string
	// Models is the ordered model fallback chain.
	Models  []string
	Timeout time.Duration
}

// OpenAIConfig holds OpenAI-compatible family settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// AnthropicConfig holds system+messages family settings.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GeminiConfig holds contents/parts family settings.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// RoutingConfig holds router tuning.
type RoutingConfig struct {
	// HealthTTL bounds how long one probe result is trusted.
	HealthTTL time.Duration

	// Retries is the per-provider attempt count (constant, no backoff).
	Retries int
}

// PolicyConfig locates the access-policy document. DocumentJSON takes
// precedence over DocumentPath; when both are empty an allow-all default
// document applies.
type PolicyConfig struct {
	DocumentJSON string
	DocumentPath string
}

// AuthConfig holds settings for the identity middleware. The router does
// not authenticate: it trusts either gateway-set headers or a JWT signed
// by the upstream gateway.
type AuthConfig struct {
	// JWTSecret verifies tenant/role bearer tokens when set. When empty
	// only the X-Tenant-ID / X-Role headers are consulted.
	JWTSecret string
}

// New creates a Config by loading environment variables.
func New() (*Config, error) {
	// Load .env if present (repo root or working directory).
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Providers: ProvidersConfig{
			SpecsJSON: getEnv("LLM_PROVIDERS_JSON", ""),
			Order:     splitList(getEnv("LLM_PROVIDER_ORDER", "")),
			Ollama: OllamaConfig{
				BaseURL: getEnv("OLLAMA_BASE_URL", "http://127.0.0.1:11434"),
				Models:  splitList(getEnv("OLLAMA_MODELS", "llama3.2:3b")),
				Timeout: getEnvAsDuration("OLLAMA_TIMEOUT", 120*time.Second),
			},
			OpenAI: OpenAIConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
				Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
				Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			},
			Anthropic: AnthropicConfig{
				APIKey:  getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				Model:   getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
				Timeout: getEnvAsDuration("ANTHROPIC_TIMEOUT", 60*time.Second),
			},
			Gemini: GeminiConfig{
				APIKey:  getEnv("GEMINI_API_KEY", ""),
				BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
				Model:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
				Timeout: getEnvAsDuration("GEMINI_TIMEOUT", 60*time.Second),
			},
		},
		Routing: RoutingConfig{
			HealthTTL: getEnvAsDuration("HEALTH_CACHE_TTL", 30*time.Second),
			Retries:   getEnvAsInt("PROVIDER_RETRIES", 1),
		},
		Policy: PolicyConfig{
			DocumentJSON: getEnv("AI_POLICY_JSON", ""),
			DocumentPath: getEnv("AI_POLICY_FILE", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks required fields and numeric sanity.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Routing.Retries < 1 {
		return fmt.Errorf("provider retries must be at least 1")
	}
	if c.Routing.HealthTTL <= 0 {
		return fmt.Errorf("health cache TTL must be positive")
	}
	if c.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	if c.Policy.DocumentJSON != "" && c.Policy.DocumentPath != "" {
		return fmt.Errorf("set AI_POLICY_JSON or AI_POLICY_FILE, not both")
	}
	return nil
}

// IsProduction returns true when running in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Enabled reports whether a decision store is configured at all. The
// router runs without one; decisions are then only logged.
func (c *DatabaseConfig) Enabled() bool {
	return c.ConnectionString != "" || c.Host != ""
}

// Address returns the HTTP server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* vars.
func loadDatabaseConfig() DatabaseConfig {
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", ""),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "llmrouter"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "llmrouter"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// splitList splits a comma-separated value, trimming blanks.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
