package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// DefaultAPIToken matches the token the mobile app ships with in development builds.
const DefaultAPIToken = "my-secret-token"

// Config holds the configuration for the anchor sync service.
// Environment variables are parsed from the ANCHOR_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP Configuration
	HTTPPort               int `envconfig:"HTTP_PORT" default:"4000"`
	ShutdownTimeoutSeconds int `envconfig:"SHUTDOWN_TIMEOUT_SECONDS" default:"10"`

	// Bearer token required on /anchors routes
	APIToken string `envconfig:"API_TOKEN" default:"my-secret-token"`

	// Persistence: file | sqlite | postgres
	DBDriver    string `envconfig:"DB_DRIVER" default:"file"`
	DataFile    string `envconfig:"DATA_FILE" default:"./anchors.json"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"./data/anchors.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Health checks
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"10"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// ResolveDefaults validates the driver selection and driver-specific settings.
func (c *Config) ResolveDefaults() error {
	switch c.Environment {
	case EnvDevelopment, EnvTesting, EnvProduction:
	default:
		return fmt.Errorf("unsupported ENVIRONMENT: %s", c.Environment)
	}

	if c.DBDriver == "" {
		c.DBDriver = "file"
	}
	switch c.DBDriver {
	case "file":
		if c.DataFile == "" {
			return fmt.Errorf("ANCHOR_DATA_FILE is required when DB_DRIVER=file")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("ANCHOR_SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("ANCHOR_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	if c.APIToken == "" {
		return fmt.Errorf("ANCHOR_API_TOKEN must not be empty")
	}
	if c.IsProduction() && c.APIToken == DefaultAPIToken {
		return fmt.Errorf("ANCHOR_API_TOKEN must be overridden in production")
	}
	if c.HealthIntervalSeconds <= 0 {
		c.HealthIntervalSeconds = 10
	}
	if c.HealthProbeTimeoutSeconds <= 0 {
		c.HealthProbeTimeoutSeconds = 2
	}
	if c.ShutdownTimeoutSeconds <= 0 {
		c.ShutdownTimeoutSeconds = 10
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Example: ANCHOR_HTTP_PORT, ANCHOR_DATA_FILE, ANCHOR_API_TOKEN
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("ANCHOR", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("port", cfg.HTTPPort).
		Str("data_file", cfg.DataFile).
		Str("sqlite_path", cfg.SQLitePath).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Bool("default_token", cfg.APIToken == DefaultAPIToken).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		Environment:               EnvTesting,
		LogLevel:                  "debug",
		HTTPPort:                  4000,
		ShutdownTimeoutSeconds:    1,
		APIToken:                  "test-token",
		DBDriver:                  "file",
		DataFile:                  "anchors.json",
		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
