package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Fragment FragmentConfig
	Logging  LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// UpstreamConfig holds the app-declaring server configuration.
type UpstreamConfig struct {
	BaseURL    string        `envconfig:"UPSTREAM_URL" default:"http://localhost:9000"`
	Timeout    time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
	MaxRetries int           `envconfig:"UPSTREAM_MAX_RETRIES" default:"3"`
}

// FragmentConfig holds fragment loading and policy configuration.
type FragmentConfig struct {
	CacheTTL                 time.Duration `envconfig:"FRAGMENT_CACHE_TTL" default:"5m"`
	CacheSize                int           `envconfig:"FRAGMENT_CACHE_SIZE" default:"50"`
	RequestTimeout           time.Duration `envconfig:"FRAGMENT_REQUEST_TIMEOUT" default:"30s"`
	AllowExternalConnections bool          `envconfig:"FRAGMENT_ALLOW_EXTERNAL" default:"false"`
	AllowedHosts             []string      `envconfig:"FRAGMENT_ALLOWED_HOSTS"`
	Sanitize                 bool          `envconfig:"FRAGMENT_SANITIZE" default:"false"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Upstream: UpstreamConfig{
			BaseURL:    "http://localhost:9000",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Fragment: FragmentConfig{
			CacheTTL:       5 * time.Minute,
			CacheSize:      50,
			RequestTimeout: 30 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
