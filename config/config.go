// Package config loads gateway settings from the environment and an
// optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultNetworkID is used when NETWORK_ID is not set.
const DefaultNetworkID = "Sonic Blaze Testnet"

// Provider names accepted by LLM_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// State backends accepted by STATE_BACKEND.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendBolt     = "bolt"
)

// Config is the fully resolved gateway configuration.
type Config struct {
	Port              int
	MaxActiveSessions int
	SessionInactivity time.Duration
	FactoryTimeout    time.Duration
	MaxMessageChars   int
	ChatLogFile       string
	CORSOrigins       []string

	LLM       LLMConfig
	CDP       CDPConfig
	State     StateConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
	Log       LogConfig
	Prompts   PromptConfig
}

// LLMConfig selects and configures the model provider.
type LLMConfig struct {
	Provider         string
	Model            string
	Temperature      float64
	MaxTokens        int64
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string
}

// CDPConfig holds the wallet platform credentials.
type CDPConfig struct {
	APIKeyName       string
	APIKeyPrivateKey string
	NetworkID        string
	// NetworkDefaulted is true when NETWORK_ID was absent.
	NetworkDefaulted bool
}

// PrivateKey returns the private key with escaped newlines expanded, since
// PEM keys are usually passed through env files on a single line.
func (c CDPConfig) PrivateKey() string {
	return strings.ReplaceAll(c.APIKeyPrivateKey, `\n`, "\n")
}

// StateConfig selects where the shared wallet blob is persisted.
type StateConfig struct {
	Backend  string
	Key      string
	Dir      string
	Redis    RedisConfig
	Postgres PostgresConfig
	Mongo    MongoConfig
	BoltPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type PostgresConfig struct {
	DSN   string
	Table string
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// RateLimitConfig throttles HTTP requests per client. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type TelemetryConfig struct {
	Disabled    bool
	Endpoint    string
	Environment string
	SampleRatio float64
}

type LogConfig struct {
	Format string
	Level  string
}

// PromptConfig carries optional overrides for the built-in prompt texts.
// Empty fields keep the defaults.
type PromptConfig struct {
	Base         string
	Requirements string
	Research     string
	Development  string
	Audit        string
	Deployment   string
	General      string
}

// SetDefaults registers every recognised key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 3000)
	v.SetDefault("max_active_sessions", 20)
	v.SetDefault("session_inactivity_ms", 600000)
	v.SetDefault("factory_timeout_ms", 60000)
	v.SetDefault("max_message_chars", 5000)
	v.SetDefault("chat_log_file", "logs/chat.log")
	v.SetDefault("cors_origins", "*")

	v.SetDefault("llm_provider", ProviderOpenAI)
	v.SetDefault("model", "")
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("anthropic_base_url", "")

	v.SetDefault("cdp_api_key_name", "")
	v.SetDefault("cdp_api_key_private_key", "")
	v.SetDefault("network_id", "")

	v.SetDefault("state_backend", BackendFile)
	v.SetDefault("state_key", "wallet")
	v.SetDefault("state_dir", ".")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_prefix", "agentgate:")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("postgres_table", "agent_state")
	v.SetDefault("mongodb_uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb_database", "agentgate")
	v.SetDefault("mongodb_collection", "state")
	v.SetDefault("bolt_path", "agentgate.db")

	v.SetDefault("rate_limit_rps", 0)
	v.SetDefault("rate_limit_burst", 20)

	v.SetDefault("telemetry_disabled", true)
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("environment", "")
	v.SetDefault("trace_sample_ratio", 1.0)

	v.SetDefault("agentgate_log_format", "json")
	v.SetDefault("agentgate_log_level", "info")

	for _, key := range []string{
		"base_instructions_prompt",
		"requirements_prompt",
		"research_prompt",
		"development_prompt",
		"audit_prompt",
		"deployment_prompt",
		"general_prompt",
	} {
		v.SetDefault(key, "")
	}
}

// Load resolves the configuration from v. Environment variables named after
// the upper-cased keys (MAX_ACTIVE_SESSIONS, PORT, ...) take precedence over
// file values, which take precedence over defaults. A nil v uses a fresh
// viper instance.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:              v.GetInt("port"),
		MaxActiveSessions: v.GetInt("max_active_sessions"),
		SessionInactivity: time.Duration(v.GetInt64("session_inactivity_ms")) * time.Millisecond,
		FactoryTimeout:    time.Duration(v.GetInt64("factory_timeout_ms")) * time.Millisecond,
		MaxMessageChars:   v.GetInt("max_message_chars"),
		ChatLogFile:       v.GetString("chat_log_file"),
		CORSOrigins:       splitList(v.GetString("cors_origins")),
		LLM: LLMConfig{
			Provider:         strings.ToLower(v.GetString("llm_provider")),
			Model:            v.GetString("model"),
			Temperature:      v.GetFloat64("temperature"),
			MaxTokens:        v.GetInt64("max_tokens"),
			OpenAIAPIKey:     v.GetString("openai_api_key"),
			OpenAIBaseURL:    v.GetString("openai_base_url"),
			AnthropicAPIKey:  v.GetString("anthropic_api_key"),
			AnthropicBaseURL: v.GetString("anthropic_base_url"),
		},
		CDP: CDPConfig{
			APIKeyName:       v.GetString("cdp_api_key_name"),
			APIKeyPrivateKey: v.GetString("cdp_api_key_private_key"),
			NetworkID:        v.GetString("network_id"),
		},
		State: StateConfig{
			Backend: strings.ToLower(v.GetString("state_backend")),
			Key:     v.GetString("state_key"),
			Dir:     v.GetString("state_dir"),
			Redis: RedisConfig{
				Addr:     v.GetString("redis_addr"),
				Password: v.GetString("redis_password"),
				DB:       v.GetInt("redis_db"),
				Prefix:   v.GetString("redis_prefix"),
			},
			Postgres: PostgresConfig{
				DSN:   v.GetString("postgres_dsn"),
				Table: v.GetString("postgres_table"),
			},
			Mongo: MongoConfig{
				URI:        v.GetString("mongodb_uri"),
				Database:   v.GetString("mongodb_database"),
				Collection: v.GetString("mongodb_collection"),
			},
			BoltPath: v.GetString("bolt_path"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("rate_limit_rps"),
			Burst: v.GetInt("rate_limit_burst"),
		},
		Telemetry: TelemetryConfig{
			Disabled:    v.GetBool("telemetry_disabled"),
			Endpoint:    v.GetString("otel_exporter_otlp_endpoint"),
			Environment: v.GetString("environment"),
			SampleRatio: v.GetFloat64("trace_sample_ratio"),
		},
		Log: LogConfig{
			Format: v.GetString("agentgate_log_format"),
			Level:  v.GetString("agentgate_log_level"),
		},
		Prompts: PromptConfig{
			Base:         v.GetString("base_instructions_prompt"),
			Requirements: v.GetString("requirements_prompt"),
			Research:     v.GetString("research_prompt"),
			Development:  v.GetString("development_prompt"),
			Audit:        v.GetString("audit_prompt"),
			Deployment:   v.GetString("deployment_prompt"),
			General:      v.GetString("general_prompt"),
		},
	}

	if cfg.CDP.NetworkID == "" {
		cfg.CDP.NetworkID = DefaultNetworkID
		cfg.CDP.NetworkDefaulted = true
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModel(cfg.LLM.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads path into a fresh viper instance and resolves it.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return Load(v)
}

// DefaultModel returns the model used when MODEL is unset.
func DefaultModel(provider string) string {
	if provider == ProviderClaude {
		return "claude-sonnet-4-5-20250929"
	}
	return "gpt-4o-mini"
}

// Validate checks structural settings. Credentials are checked separately by
// ValidateCredentials because the gateway must be able to start and report
// status without them.
func (c *Config) Validate() error {
	v := NewValidator()
	v.ValidatePort("PORT", c.Port)
	v.RequirePositive("MAX_ACTIVE_SESSIONS", c.MaxActiveSessions)
	v.RequirePositive("SESSION_INACTIVITY_MS", int(c.SessionInactivity/time.Millisecond))
	v.RequirePositive("FACTORY_TIMEOUT_MS", int(c.FactoryTimeout/time.Millisecond))
	v.RequirePositive("MAX_MESSAGE_CHARS", c.MaxMessageChars)
	v.ValidateOneOf("LLM_PROVIDER", c.LLM.Provider, ProviderOpenAI, ProviderClaude)
	v.ValidateFloatRange("TEMPERATURE", c.LLM.Temperature, 0, 2)
	v.RequirePositive("MAX_TOKENS", int(c.LLM.MaxTokens))
	v.ValidateFloatRange("TRACE_SAMPLE_RATIO", c.Telemetry.SampleRatio, 0, 1)
	v.RequireNonEmpty("STATE_KEY", c.State.Key)
	v.ValidateOneOf("STATE_BACKEND", c.State.Backend,
		BackendFile, BackendRedis, BackendPostgres, BackendMongo, BackendBolt)

	switch c.State.Backend {
	case BackendFile:
		v.RequireNonEmpty("STATE_DIR", c.State.Dir)
	case BackendRedis:
		v.RequireNonEmpty("REDIS_ADDR", c.State.Redis.Addr)
		v.ValidateDBNumber("REDIS_DB", c.State.Redis.DB)
	case BackendPostgres:
		v.RequireNonEmpty("POSTGRES_DSN", c.State.Postgres.DSN)
		v.RequireNonEmpty("POSTGRES_TABLE", c.State.Postgres.Table)
	case BackendMongo:
		v.RequireNonEmpty("MONGODB_URI", c.State.Mongo.URI)
		v.RequireNonEmpty("MONGODB_DATABASE", c.State.Mongo.Database)
		v.RequireNonEmpty("MONGODB_COLLECTION", c.State.Mongo.Collection)
	case BackendBolt:
		v.RequireNonEmpty("BOLT_PATH", c.State.BoltPath)
	}

	if c.RateLimit.RPS > 0 {
		v.RequirePositive("RATE_LIMIT_BURST", c.RateLimit.Burst)
	}
	return v.Error()
}

// ValidateCredentials reports the credential variables that are missing for
// the configured provider.
func (c *Config) ValidateCredentials() error {
	v := NewValidator()
	switch c.LLM.Provider {
	case ProviderClaude:
		v.RequireNonEmpty("ANTHROPIC_API_KEY", c.LLM.AnthropicAPIKey)
	default:
		v.RequireNonEmpty("OPENAI_API_KEY", c.LLM.OpenAIAPIKey)
	}
	v.RequireNonEmpty("CDP_API_KEY_NAME", c.CDP.APIKeyName)
	v.RequireNonEmpty("CDP_API_KEY_PRIVATE_KEY", c.CDP.APIKeyPrivateKey)
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("required environment variables are not set: %s: %w",
		strings.Join(v.Fields(), ", "), v.Error())
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
