// Package config loads the service configuration: struct defaults,
// overridden by an optional YAML file, overridden by the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Deployment environments. Everything except DEVELOPMENT only serves
// released data.
const (
	EnvDevelopment = "DEVELOPMENT"
	EnvStaging     = "STAGING"
	EnvSandbox     = "SANDBOX"
	EnvProduction  = "PRODUCTION"
)

type Config struct {
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	Location        string        `koanf:"location"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool `koanf:"enabled"`
	RequestsPerSecond int  `koanf:"requests_per_second"`
	BurstSize         int  `koanf:"burst_size"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int           `koanf:"max_conns"`
	MinConns        int           `koanf:"min_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	QueryTimeout    time.Duration `koanf:"query_timeout"`
}

var validEnvironments = map[string]bool{
	EnvDevelopment: true,
	EnvStaging:     true,
	EnvSandbox:     true,
	EnvProduction:  true,
}

// Load layers defaults, the optional configs/config.yaml, and the
// environment. The legacy variable names API_ENV,
// POSTGRES_CONNECTION_STRING and SERVER_LOCATION are honoured; other
// settings use the APP_ prefix with double underscores between
// sections (e.g. APP_SERVER__PORT, APP_SERVER__READ_TIMEOUT).
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Environment: EnvProduction,
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			RequestTimeout:  75 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 100,
				BurstSize:         200,
			},
		},
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        2,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    60 * time.Second,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// The config file is optional.
	_ = k.Load(file.Provider("configs/config.yaml"), yaml.Parser())

	if err := k.Load(env.Provider("", ".", mapEnvVar), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Environment = strings.ToUpper(cfg.Environment)
	if !validEnvironments[cfg.Environment] {
		return nil, fmt.Errorf("unknown environment %q", cfg.Environment)
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database URL is not configured (POSTGRES_CONNECTION_STRING)")
	}

	return &cfg, nil
}

func mapEnvVar(name string) string {
	switch name {
	case "API_ENV":
		return "environment"
	case "POSTGRES_CONNECTION_STRING":
		return "database.url"
	case "SERVER_LOCATION":
		return "server.location"
	}

	if strings.HasPrefix(name, "APP_") {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(name, "APP_")), "__", ".")
	}

	// Unrelated variables are skipped.
	return ""
}

// SelfURL is the absolute base URL the API is served from, used for
// response headers. DEVELOPMENT has no canonical host.
func (c *Config) SelfURL() string {
	switch c.Environment {
	case EnvDevelopment:
		return ""
	case EnvStaging:
		return "https://api.coronavirus-staging.data.gov.uk"
	default:
		return "https://api.coronavirus.data.gov.uk"
	}
}
