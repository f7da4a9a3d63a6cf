package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := cfg.parseFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8081",
			ReadTimeout:  Duration{Duration: 15 * time.Second},
			WriteTimeout: Duration{Duration: 15 * time.Second},
			IdleTimeout:  Duration{Duration: 60 * time.Second},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Environment: "development",
		},
		Storage: StorageConfig{
			Backend:             "",
			MongoDBDatabase:     "authport",
			EventsTableName:     "webhook_events",
			EndpointsTableName:  "webhook_endpoints",
			DeliveriesTableName: "webhook_deliveries",
			PostgresPool: PostgresPoolConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: Duration{Duration: 30 * time.Minute},
				ConnMaxIdleTime: Duration{Duration: 5 * time.Minute},
			},
		},
		Dispatcher: DispatcherConfig{
			PollInterval:   Duration{Duration: 5 * time.Second},
			BatchSize:      50,
			Concurrency:    10,
			SweepInterval:  Duration{Duration: 60 * time.Second},
			StaleThreshold: Duration{Duration: 5 * time.Minute},
			Retry: RetryConfig{
				MaxAttempts:     8,
				InitialInterval: Duration{Duration: 30 * time.Second},
				MaxInterval:     Duration{Duration: 24 * time.Hour},
				Multiplier:      2.0,
				Timeout:         Duration{Duration: 10 * time.Second},
			},
		},
		Webhooks: WebhooksConfig{
			MaxResponseBytes:     1024,
			DisableAfterFailures: 0,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             true,
			MaxRequests:         5,
			Interval:            Duration{Duration: 60 * time.Second},
			Timeout:             Duration{Duration: 60 * time.Second},
			ConsecutiveFailures: 10,
			FailureRatio:        0.7,
			MinRequests:         20,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 120,
		},
	}
}

// parseFile loads YAML configuration from disk into the receiver.
func (c *Config) parseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	return nil
}

// finalize normalizes defaults and validates the assembled configuration.
func (c *Config) finalize() error {
	if c.Storage.Backend == "" {
		// Auto-detect backend from provided connection strings.
		switch {
		case c.Storage.PostgresURL != "":
			c.Storage.Backend = "postgres"
		case c.Storage.MongoDBURL != "":
			c.Storage.Backend = "mongodb"
		default:
			c.Storage.Backend = "memory"
		}
	}

	if c.Dispatcher.BatchSize <= 0 {
		c.Dispatcher.BatchSize = 50
	}
	if c.Dispatcher.Concurrency <= 0 {
		c.Dispatcher.Concurrency = 10
	}
	if c.Dispatcher.Retry.MaxAttempts <= 0 {
		c.Dispatcher.Retry.MaxAttempts = 8
	}
	if c.Dispatcher.Retry.Multiplier <= 1 {
		c.Dispatcher.Retry.Multiplier = 2.0
	}
	if c.Webhooks.MaxResponseBytes <= 0 {
		c.Webhooks.MaxResponseBytes = 1024
	}

	return c.validate()
}
