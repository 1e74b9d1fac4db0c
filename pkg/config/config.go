package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for community-search-api.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values. Secrets (passwords, API
// keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// AdminKey guards the admin endpoints (ingestion, cache refresh).
	AdminKey string `yaml:"-" env:"ADMIN_SECRET_KEY"` // Secret - not in YAML

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Translation capability (LLM) configuration
	LLM LLMConfig `yaml:"llm"`

	// Pipeline tunables
	Pipeline PipelineConfig `yaml:"pipeline"`

	// MigrationsPath is the directory holding SQL migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// SynonymsPath is the YAML file with the synonym and abbreviation tables.
	SynonymsPath string `yaml:"synonyms_path" env:"SYNONYMS_PATH" env-default:"synonyms.yaml"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"community"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"community_search"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"20"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"prefer"`
}

// LLMConfig holds configuration for the external translation capability.
type LLMConfig struct {
	// Provider selects the SQL synthesis backend: "openai" or "anthropic".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	// Endpoint is the base URL for OpenAI-compatible endpoints. Ignored for anthropic.
	Endpoint string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	// TimeoutSeconds bounds a single synthesis call.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"10"`
}

// PipelineConfig holds tunables for the query-resolution pipeline.
type PipelineConfig struct {
	// MaxQuestionLength is the ceiling on raw question length in characters.
	MaxQuestionLength int `yaml:"max_question_length" env:"MAX_QUESTION_LENGTH" env-default:"500"`
	// MatchThreshold is the minimum fuzzy-match confidence on a [0,1] scale.
	MatchThreshold float64 `yaml:"match_threshold" env:"MATCH_THRESHOLD" env-default:"0.75"`
	// RowLimit caps the number of rows returned to the caller.
	RowLimit int `yaml:"row_limit" env:"ROW_LIMIT" env-default:"200"`
	// ExecutionTimeoutSeconds bounds store execution of a validated query.
	ExecutionTimeoutSeconds int `yaml:"execution_timeout_seconds" env:"EXECUTION_TIMEOUT_SECONDS" env-default:"5"`
	// CacheRefreshMinutes is the known-values cache refresh interval.
	CacheRefreshMinutes int `yaml:"cache_refresh_minutes" env:"CACHE_REFRESH_MINUTES" env-default:"15"`
}

// Timeout returns the synthesis timeout as a duration.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ExecutionTimeout returns the store execution timeout as a duration.
func (c *PipelineConfig) ExecutionTimeout() time.Duration {
	return time.Duration(c.ExecutionTimeoutSeconds) * time.Second
}

// CacheRefreshInterval returns the cache refresh interval as a duration.
func (c *PipelineConfig) CacheRefreshInterval() time.Duration {
	return time.Duration(c.CacheRefreshMinutes) * time.Minute
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Pipeline.MatchThreshold < 0 || c.Pipeline.MatchThreshold > 1 {
		return fmt.Errorf("match_threshold must be in [0,1], got %f", c.Pipeline.MatchThreshold)
	}
	if c.Pipeline.MaxQuestionLength <= 0 {
		return fmt.Errorf("max_question_length must be positive")
	}
	if c.Pipeline.RowLimit <= 0 {
		return fmt.Errorf("row_limit must be positive")
	}
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
