// Package config provides configuration loading and validation for the intake service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/candidate-intake/internal/logging"
)

// Store backends.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config represents the service configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or environment variables.
type Config struct {
	// Server
	Port           int   `json:"port,omitempty"`             // HTTP listen port
	MaxUploadBytes int64 `json:"max_upload_bytes,omitempty"` // Largest accepted resume upload

	// Storage
	StoreBackend  string `json:"store_backend,omitempty"`   // file, postgres or redis
	OutputsDir    string `json:"outputs_dir,omitempty"`     // Report directory for the file backend
	AnswersDir    string `json:"answers_dir,omitempty"`     // Snapshot directory
	DatabaseURL   string `json:"database_url,omitempty"`    // PostgreSQL connection URL
	RedisURL      string `json:"redis_url,omitempty"`       // redis://host:port/db
	RedisTTLHours int    `json:"redis_ttl_hours,omitempty"` // Report expiry for the redis backend, 0 keeps forever

	// Snapshot archive (S3 compatible, optional)
	S3Bucket    string `json:"s3_bucket,omitempty"`
	S3Endpoint  string `json:"s3_endpoint,omitempty"`
	S3Region    string `json:"s3_region,omitempty"`
	S3AccessKey string `json:"s3_access_key,omitempty"`
	S3SecretKey string `json:"s3_secret_key,omitempty"`
	S3Prefix    string `json:"s3_prefix,omitempty"`

	// Upstream LLM
	APIKey         string  `json:"api_key,omitempty"`         // Gemini API key
	Model          string  `json:"model,omitempty"`           // Overrides the standard tier model
	Temperature    float32 `json:"temperature,omitempty"`     // Sampling temperature
	TimeoutSeconds int     `json:"timeout_seconds,omitempty"` // Per-attempt timeout
	MaxAttempts    int     `json:"max_attempts,omitempty"`    // 1 disables retries
	BackoffMillis  int     `json:"backoff_millis,omitempty"`  // Initial retry delay

	RateLimit RateLimit `json:"rate_limit,omitempty"`

	Logging logging.Config `json:"logging,omitempty"`
}

// RateLimit configures per-client request limits. Route-specific limits are built in.
type RateLimit struct {
	Disabled         bool     `json:"disabled,omitempty"`
	DefaultPerMinute int      `json:"default_per_minute,omitempty"` // limit for routes without a rule
	Allow            []string `json:"allow,omitempty"`              // clients never limited
	Deny             []string `json:"deny,omitempty"`               // clients always refused
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:           3000,
		MaxUploadBytes: 10 << 20,
		StoreBackend:   StoreFile,
		OutputsDir:     filepath.Join("backend", "outputs"),
		AnswersDir:     filepath.Join("backend", "BehaviourJSON"),
		S3Region:       "auto",
		S3Prefix:       "answers/",
		Temperature:    0.2,
		TimeoutSeconds: 60,
		MaxAttempts:    3,
		BackoffMillis:  500,
		RateLimit: RateLimit{
			DefaultPerMinute: 1000,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Load resolves the effective configuration: optional file, then environment, then defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.ApplyEnv(os.Getenv)
	merged := cfg.MergeWithDefaults(Defaults())

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Validate checks that the configuration has valid values.
// The API key is not checked here since only commands that call the model need it.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreFile:
		if c.OutputsDir == "" {
			return fmt.Errorf("config error: 'outputs_dir' is required for the file store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: 'database_url' is required for the postgres store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config error: 'redis_url' is required for the redis store")
		}
	default:
		return fmt.Errorf("config error: unknown store backend %q", c.StoreBackend)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 1 and 65535")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config error: 'max_upload_bytes' must be positive")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("config error: 'max_attempts' must be at least 1")
	}
	if c.RateLimit.DefaultPerMinute < 0 {
		return fmt.Errorf("config error: 'rate_limit.default_per_minute' must be non-negative")
	}
	if c.TimeoutSeconds < 0 || c.BackoffMillis < 0 || c.RedisTTLHours < 0 {
		return fmt.Errorf("config error: durations must be non-negative")
	}
	if c.S3Bucket != "" && (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		return fmt.Errorf("config error: 's3_access_key' and 's3_secret_key' must be set together")
	}

	return nil
}

// MergeWithDefaults returns a new Config with zero fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.MaxUploadBytes == 0 {
		result.MaxUploadBytes = defaults.MaxUploadBytes
	}
	if result.StoreBackend == "" {
		result.StoreBackend = defaults.StoreBackend
	}
	if result.OutputsDir == "" {
		result.OutputsDir = defaults.OutputsDir
	}
	if result.AnswersDir == "" {
		result.AnswersDir = defaults.AnswersDir
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.RedisURL == "" {
		result.RedisURL = defaults.RedisURL
	}
	if result.RedisTTLHours == 0 {
		result.RedisTTLHours = defaults.RedisTTLHours
	}
	if result.S3Region == "" {
		result.S3Region = defaults.S3Region
	}
	if result.S3Prefix == "" {
		result.S3Prefix = defaults.S3Prefix
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.Temperature == 0 {
		result.Temperature = defaults.Temperature
	}
	if result.TimeoutSeconds == 0 {
		result.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if result.MaxAttempts == 0 {
		result.MaxAttempts = defaults.MaxAttempts
	}
	if result.BackoffMillis == 0 {
		result.BackoffMillis = defaults.BackoffMillis
	}
	if result.RateLimit.DefaultPerMinute == 0 {
		result.RateLimit.DefaultPerMinute = defaults.RateLimit.DefaultPerMinute
	}
	if result.Logging.Level == "" {
		result.Logging.Level = defaults.Logging.Level
	}
	if result.Logging.Format == "" {
		result.Logging.Format = defaults.Logging.Format
	}

	return result
}

// ApplyEnv overrides fields from environment variables. getenv is os.Getenv outside tests.
// A DATABASE_URL or REDIS_URL also selects the matching store when none was chosen yet.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("GEMINI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := getenv("GEMINI_MODEL"); v != "" {
		c.Model = v
	}
	if v := getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
		if c.StoreBackend == "" {
			c.StoreBackend = StorePostgres
		}
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
		if c.StoreBackend == "" {
			c.StoreBackend = StoreRedis
		}
	}
	if v := getenv("STORE_BACKEND"); v != "" {
		c.StoreBackend = v
	}
	if v := getenv("S3_BUCKET"); v != "" {
		c.S3Bucket = v
	}
	if v := getenv("S3_ENDPOINT"); v != "" {
		c.S3Endpoint = v
	}
	if v := getenv("S3_REGION"); v != "" {
		c.S3Region = v
	}
	if v := getenv("S3_ACCESS_KEY"); v != "" {
		c.S3AccessKey = v
	}
	if v := getenv("S3_SECRET_KEY"); v != "" {
		c.S3SecretKey = v
	}
	if v := getenv("RATE_LIMIT_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.RateLimit.Disabled = !enabled
		}
	}
	if v := getenv("RATE_LIMIT_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.DefaultPerMinute = n
		}
	}
	if v := getenv("RATE_LIMIT_WHITELIST"); v != "" {
		c.RateLimit.Allow = strings.Split(v, ",")
	}
	if v := getenv("RATE_LIMIT_BLACKLIST"); v != "" {
		c.RateLimit.Deny = strings.Split(v, ",")
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// Timeout returns the per-attempt LLM timeout. Zero means no timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Backoff returns the initial retry delay.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.BackoffMillis) * time.Millisecond
}

// RedisTTL returns the report expiry for the redis store.
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.RedisTTLHours) * time.Hour
}
