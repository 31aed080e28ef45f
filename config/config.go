package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"stakehouse/database"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL         string        `env:"DATABASE_URL"`
	DatabaseName        string        `env:"DATABASE_NAME"`
	DatabaseMaxConns    int32         `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	DatabaseConnMaxLife time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`

	// NATS configuration
	NATSServers string `env:"NATS_SERVERS" envDefault:"nats://nats:4222"`
	NATSName    string `env:"NATS_CLIENT_NAME" envDefault:"stakehouse"`

	// Key-value buckets holding session identities, draft caches and the
	// directory of registered staker names
	IdentityBucket  string `env:"KV_IDENTITY_BUCKET" envDefault:"stake_session_identities"`
	DraftBucket     string `env:"KV_DRAFT_BUCKET" envDefault:"stake_drafts"`
	DirectoryBucket string `env:"KV_DIRECTORY_BUCKET" envDefault:"staker_directory"`

	// HTTP API configuration
	HTTPAddr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Draft sync worker configuration
	DraftSyncInterval time.Duration `env:"DRAFT_SYNC_INTERVAL" envDefault:"1m"`
	DraftSyncEnabled  bool          `env:"DRAFT_SYNC_ENABLED" envDefault:"true"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// OpenTelemetry configuration
	OTelEnabled              bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTelServiceName          string `env:"OTEL_SERVICE_NAME" envDefault:"stakehouse"`
	OTelExporterType         string `env:"OTEL_EXPORTER_TYPE" envDefault:"none"`
	OTelOTLPEndpoint         string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"otel-collector:4317"`
	OTelExportIntervalMillis int    `env:"OTEL_EXPORT_INTERVAL_MILLIS" envDefault:"30000"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = Load()
		if err != nil {
			// In test environment, use a default test config instead of panicking
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// PoolOptions returns the connection pool limits
func (c *Config) PoolOptions() database.PoolOptions {
	return database.PoolOptions{
		MaxConns:        c.DatabaseMaxConns,
		MaxConnLifetime: c.DatabaseConnMaxLife,
	}
}

// Load reads an optional .env file and parses configuration from the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings outside the test environment
func (c *Config) Validate() error {
	if c.Environment == "test" {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
		return fmt.Errorf("DATABASE_NAME cannot be empty when provided")
	}
	switch c.OTelExporterType {
	case "none", "console", "otlp":
	default:
		return fmt.Errorf("unknown OTEL_EXPORTER_TYPE %q", c.OTelExporterType)
	}
	if c.DraftSyncInterval <= 0 {
		return fmt.Errorf("DRAFT_SYNC_INTERVAL must be positive")
	}
	return nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:              "test",
		NATSName:                 "stakehouse-test",
		IdentityBucket:           "test_identities",
		DraftBucket:              "test_drafts",
		DirectoryBucket:          "test_directory",
		HTTPAddr:                 ":0",
		DraftSyncInterval:        time.Second,
		LogLevel:                 "debug",
		LogFormat:                "text",
		OTelServiceName:          "stakehouse-test",
		OTelExporterType:         "none",
		OTelExportIntervalMillis: 1000,
	}
}
