package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Storage        StorageConfig        `yaml:"storage"`
	Dispatcher     DispatcherConfig     `yaml:"dispatcher"`
	Webhooks       WebhooksConfig       `yaml:"webhooks"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

// ServerConfig holds the admin/observability HTTP server configuration.
type ServerConfig struct {
	Address            string   `yaml:"address"`
	ReadTimeout        Duration `yaml:"read_timeout"`
	WriteTimeout       Duration `yaml:"write_timeout"`
	IdleTimeout        Duration `yaml:"idle_timeout"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	AdminAPIKey        string   `yaml:"admin_api_key"` // Optional API key protecting /admin and /metrics (empty disables protection)
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level       string `yaml:"level"`  // debug, info, warn, error
	Format      string `yaml:"format"` // json, console
	Environment string `yaml:"environment"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend         string             `yaml:"backend"` // "memory", "postgres", or "mongodb"
	PostgresURL     string             `yaml:"postgres_url"`
	MongoDBURL      string             `yaml:"mongodb_url"`
	MongoDBDatabase string             `yaml:"mongodb_database"`
	PostgresPool    PostgresPoolConfig `yaml:"postgres_pool"`

	// Table names for Postgres, collection names for MongoDB.
	EventsTableName     string `yaml:"events_table_name"`     // Default: "webhook_events"
	EndpointsTableName  string `yaml:"endpoints_table_name"`  // Default: "webhook_endpoints"
	DeliveriesTableName string `yaml:"deliveries_table_name"` // Default: "webhook_deliveries"
}

// PostgresPoolConfig tunes the shared connection pool.
type PostgresPoolConfig struct {
	MaxOpenConns    int      `yaml:"max_open_conns"`     // Default: 25
	MaxIdleConns    int      `yaml:"max_idle_conns"`     // Default: 5
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`  // Default: 30m
	ConnMaxIdleTime Duration `yaml:"conn_max_idle_time"` // Default: 5m
}

// DispatcherConfig controls the delivery worker loops.
type DispatcherConfig struct {
	PollInterval   Duration    `yaml:"poll_interval"`   // Default: 5s
	BatchSize      int         `yaml:"batch_size"`      // Default: 50
	Concurrency    int         `yaml:"concurrency"`     // Default: 10
	SweepInterval  Duration    `yaml:"sweep_interval"`  // Default: 60s
	StaleThreshold Duration    `yaml:"stale_threshold"` // Default: 5m
	Retry          RetryConfig `yaml:"retry"`
}

// RetryConfig holds delivery retry configuration.
// Backoff is exponential: interval = initial_interval * multiplier^(attempt-1), capped at max_interval.
type RetryConfig struct {
	MaxAttempts     int      `yaml:"max_attempts"`     // Default: 8
	InitialInterval Duration `yaml:"initial_interval"` // Default: 30s
	MaxInterval     Duration `yaml:"max_interval"`     // Default: 24h
	Multiplier      float64  `yaml:"multiplier"`       // Default: 2.0
	Timeout         Duration `yaml:"timeout"`          // Per-attempt HTTP timeout. Default: 10s
}

// WebhooksConfig holds delivery-time policy for outbound webhooks.
type WebhooksConfig struct {
	MaxResponseBytes     int    `yaml:"max_response_bytes"`     // Stored response body cap. Default: 1024
	DisableAfterFailures int    `yaml:"disable_after_failures"` // Deactivate endpoint after N consecutive failures (0 = never)
	SecretKey            string `yaml:"secret_key"`             // Hex-encoded 32-byte key for endpoint secret encryption at rest
	AllowPrivateTargets  bool   `yaml:"allow_private_targets"`  // Skip destination validation (local development only)
}

// CircuitBreakerConfig configures per-endpoint delivery breakers.
type CircuitBreakerConfig struct {
	Enabled             bool     `yaml:"enabled"`              // Default: true
	MaxRequests         uint32   `yaml:"max_requests"`         // Probes allowed while half-open. Default: 5
	Interval            Duration `yaml:"interval"`             // Closed-state count reset period. Default: 60s
	Timeout             Duration `yaml:"timeout"`              // Open-state duration before half-open. Default: 60s
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"` // Trip threshold. Default: 10
	FailureRatio        float64  `yaml:"failure_ratio"`        // Trip ratio over min_requests. Default: 0.7
	MinRequests         uint32   `yaml:"min_requests"`         // Default: 20
}

// RateLimitConfig throttles the admin HTTP surface.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`             // Default: true
	RequestsPerMinute int  `yaml:"requests_per_minute"` // Default: 120
}
