package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Backend  BackendConfig  `yaml:"backend"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Results  ResultsConfig  `yaml:"results"`
	Import   ImportConfig   `yaml:"import"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port               int    `yaml:"port" validate:"min=1,max=65535"`
	MetricsPort        int    `yaml:"metrics_port" validate:"min=1,max=65535,nefield=Port"`
	AdminToken         string `yaml:"admin_token"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute" validate:"min=0"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// BackendConfig points at the remote REST backend. It is used for reads
// when no database is configured.
type BackendConfig struct {
	URL   string `yaml:"url" validate:"omitempty,url"`
	Token string `yaml:"token"`
}

// HermesConfig is optional; an empty URL disables events.
type HermesConfig struct {
	URL string `yaml:"url"`
}

type ResultsConfig struct {
	SnapshotIntervalMs int  `yaml:"snapshot_interval_ms" validate:"min=1000"`
	SnapshotEnabled    bool `yaml:"snapshot_enabled"`
	FetchConcurrency   int  `yaml:"fetch_concurrency" validate:"min=1,max=32"`
}

type ImportConfig struct {
	MaxSuggestions int `yaml:"max_suggestions" validate:"min=1"`
	MaxDistance    int `yaml:"max_distance" validate:"min=1"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Results.SnapshotIntervalMs) * time.Millisecond
}

// Validate checks ranges, that at least one data source is configured, and
// that write routes are protected.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Database.URL == "" && c.Backend.URL == "" {
		return fmt.Errorf("invalid config: database.url or backend.url required")
	}
	// Admin routes are only mounted with a database.
	if c.Database.URL != "" && c.Server.AdminToken == "" {
		return fmt.Errorf("invalid config: server.admin_token required when database.url is set")
	}
	return nil
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               8700,
			MetricsPort:        8701,
			RateLimitPerMinute: 240,
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Results: ResultsConfig{
			SnapshotIntervalMs: 60000,
			SnapshotEnabled:    true,
			FetchConcurrency:   7,
		},
		Import: ImportConfig{
			MaxSuggestions: 3,
			MaxDistance:    3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setInt("RISKINDEX_PORT", &cfg.Server.Port)
	setInt("RISKINDEX_METRICS_PORT", &cfg.Server.MetricsPort)
	setString("RISKINDEX_ADMIN_TOKEN", &cfg.Server.AdminToken)
	setInt("RISKINDEX_RATE_LIMIT_PER_MINUTE", &cfg.Server.RateLimitPerMinute)
	if v := os.Getenv("RISKINDEX_TRUST_PROXY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.TrustProxy = b
		}
	}
	setString("RISKINDEX_DATABASE_URL", &cfg.Database.URL)
	setString("RISKINDEX_BACKEND_URL", &cfg.Backend.URL)
	setString("RISKINDEX_BACKEND_TOKEN", &cfg.Backend.Token)
	setString("RISKINDEX_HERMES_URL", &cfg.Hermes.URL)
	setInt("RISKINDEX_SNAPSHOT_INTERVAL_MS", &cfg.Results.SnapshotIntervalMs)
	if v := os.Getenv("RISKINDEX_SNAPSHOT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Results.SnapshotEnabled = b
		}
	}
	setInt("RISKINDEX_FETCH_CONCURRENCY", &cfg.Results.FetchConcurrency)
	setString("RISKINDEX_LOG_LEVEL", &cfg.Logging.Level)
	setString("RISKINDEX_LOG_FORMAT", &cfg.Logging.Format)
}
