package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Store backend names accepted by Config.Store.Backend.
const (
	BackendInMemory = "inmemory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Provider names accepted by Config.Provider.Name.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// StoreConfig selects and configures the session store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`

	SQLitePath string `yaml:"sqlite_path"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	PostgresDSN string `yaml:"postgres_dsn"`

	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`
}

// ProviderConfig configures the LLM backing the agents.
type ProviderConfig struct {
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// TutorConfig tunes the orchestration pipeline.
type TutorConfig struct {
	TokenBudget   int `yaml:"token_budget"`
	MaxConcurrent int `yaml:"max_concurrent"`
}

// RateLimitConfig configures the per-session request limiter.
type RateLimitConfig struct {
	MaxRequests   int `yaml:"max_requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

// PromptLimits bounds incoming user prompts.
type PromptLimits struct {
	MaxRunes int `yaml:"max_runes"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`
}

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Provider  ProviderConfig  `yaml:"provider"`
	Tutor     TutorConfig     `yaml:"tutor"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Prompt    PromptLimits    `yaml:"prompt"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8000",
		},
		Store: StoreConfig{
			Backend:         BackendSQLite,
			SQLitePath:      "memory.db",
			RedisAddr:       "localhost:6379",
			MongoDatabase:   "tutorgraph",
			MongoCollection: "sessions",
		},
		Provider: ProviderConfig{
			Name:        ProviderOpenAI,
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   1024,
		},
		Tutor: TutorConfig{
			TokenBudget:   4096,
			MaxConcurrent: 64,
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   30,
			WindowSeconds: 60,
		},
		Prompt: PromptLimits{
			MaxRunes: 4000,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "tutorgraph",
			Environment: "development",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// TUTORGRAPH_* environment overrides, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "TUTORGRAPH_ADDR")
	setString(&c.Server.StaticDir, "TUTORGRAPH_STATIC_DIR")

	setString(&c.Store.Backend, "TUTORGRAPH_STORE_BACKEND")
	setString(&c.Store.SQLitePath, "TUTORGRAPH_SQLITE_PATH")
	setString(&c.Store.RedisAddr, "TUTORGRAPH_REDIS_ADDR")
	setString(&c.Store.RedisPassword, "TUTORGRAPH_REDIS_PASSWORD")
	setInt(&c.Store.RedisDB, "TUTORGRAPH_REDIS_DB")
	setString(&c.Store.PostgresDSN, "TUTORGRAPH_POSTGRES_DSN")
	setString(&c.Store.MongoURI, "TUTORGRAPH_MONGO_URI")
	setString(&c.Store.MongoDatabase, "TUTORGRAPH_MONGO_DATABASE")
	setString(&c.Store.MongoCollection, "TUTORGRAPH_MONGO_COLLECTION")

	setString(&c.Provider.Name, "TUTORGRAPH_PROVIDER")
	setString(&c.Provider.Model, "TUTORGRAPH_MODEL")
	setString(&c.Provider.APIKey, "TUTORGRAPH_API_KEY")
	setFloat(&c.Provider.Temperature, "TUTORGRAPH_TEMPERATURE")
	setInt(&c.Provider.MaxTokens, "TUTORGRAPH_MAX_TOKENS")

	setInt(&c.Tutor.TokenBudget, "TUTORGRAPH_TOKEN_BUDGET")
	setInt(&c.Tutor.MaxConcurrent, "TUTORGRAPH_MAX_CONCURRENT")

	setInt(&c.RateLimit.MaxRequests, "TUTORGRAPH_RATE_LIMIT")
	setInt(&c.RateLimit.WindowSeconds, "TUTORGRAPH_RATE_WINDOW")

	setInt(&c.Prompt.MaxRunes, "TUTORGRAPH_PROMPT_MAX_RUNES")

	setBool(&c.Telemetry.Enabled, "TUTORGRAPH_TELEMETRY_ENABLED")
	setString(&c.Telemetry.ServiceName, "TUTORGRAPH_SERVICE_NAME")
	setString(&c.Telemetry.Environment, "TUTORGRAPH_ENVIRONMENT")

	// Provider-native key variables win only when no explicit key is set.
	if c.Provider.APIKey == "" {
		switch c.Provider.Name {
		case ProviderOpenAI:
			c.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderClaude:
			c.Provider.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case ProviderGemini:
			c.Provider.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	v := NewValidator()

	v.RequireNonEmpty("server.addr", c.Server.Addr)
	v.ValidateOneOf("store.backend", c.Store.Backend,
		BackendInMemory, BackendSQLite, BackendRedis, BackendPostgres, BackendMongo)

	switch c.Store.Backend {
	case BackendSQLite:
		v.RequireNonEmpty("store.sqlite_path", c.Store.SQLitePath)
	case BackendRedis:
		v.RequireNonEmpty("store.redis_addr", c.Store.RedisAddr)
		v.ValidateRange("store.redis_db", c.Store.RedisDB, 0, 15)
	case BackendPostgres:
		v.RequireNonEmpty("store.postgres_dsn", c.Store.PostgresDSN)
	case BackendMongo:
		v.RequireNonEmpty("store.mongo_uri", c.Store.MongoURI)
		v.RequireNonEmpty("store.mongo_database", c.Store.MongoDatabase)
		v.RequireNonEmpty("store.mongo_collection", c.Store.MongoCollection)
	}

	v.ValidateOneOf("provider.name", c.Provider.Name,
		ProviderOpenAI, ProviderClaude, ProviderGemini)
	v.RequireNonEmpty("provider.model", c.Provider.Model)
	v.ValidateFloatRange("provider.temperature", c.Provider.Temperature, 0.0, 2.0)
	v.RequirePositive("provider.max_tokens", c.Provider.MaxTokens)

	v.RequirePositive("tutor.token_budget", c.Tutor.TokenBudget)
	v.RequirePositive("tutor.max_concurrent", c.Tutor.MaxConcurrent)

	v.RequirePositive("rate_limit.max_requests", c.RateLimit.MaxRequests)
	v.RequirePositive("rate_limit.window_seconds", c.RateLimit.WindowSeconds)

	return v.Error()
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
