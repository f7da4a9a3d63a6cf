package config

import (
	"encoding/hex"
	"fmt"
)

// validate enforces invariants that would otherwise surface as runtime faults.
func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "memory":
		// No connection settings required. Unsafe for production: deliveries
		// do not survive a restart.
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.postgres_url is required for postgres backend")
		}
	case "mongodb":
		if c.Storage.MongoDBURL == "" {
			return fmt.Errorf("storage.mongodb_url is required for mongodb backend")
		}
		if c.Storage.MongoDBDatabase == "" {
			return fmt.Errorf("storage.mongodb_database is required for mongodb backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, postgres, mongodb (got %q)", c.Storage.Backend)
	}

	if c.Dispatcher.PollInterval.Duration <= 0 {
		return fmt.Errorf("dispatcher.poll_interval must be positive")
	}
	if c.Dispatcher.SweepInterval.Duration <= 0 {
		return fmt.Errorf("dispatcher.sweep_interval must be positive")
	}
	if c.Dispatcher.StaleThreshold.Duration <= 0 {
		return fmt.Errorf("dispatcher.stale_threshold must be positive")
	}
	if c.Dispatcher.StaleThreshold.Duration <= c.Dispatcher.Retry.Timeout.Duration {
		return fmt.Errorf("dispatcher.stale_threshold must exceed retry.timeout, otherwise live deliveries get reclaimed mid-flight")
	}
	if c.Dispatcher.Retry.InitialInterval.Duration <= 0 {
		return fmt.Errorf("dispatcher.retry.initial_interval must be positive")
	}
	if c.Dispatcher.Retry.MaxInterval.Duration < c.Dispatcher.Retry.InitialInterval.Duration {
		return fmt.Errorf("dispatcher.retry.max_interval must be >= initial_interval")
	}

	if c.Webhooks.SecretKey != "" {
		key, err := hex.DecodeString(c.Webhooks.SecretKey)
		if err != nil {
			return fmt.Errorf("webhooks.secret_key must be hex encoded: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("webhooks.secret_key must decode to 32 bytes (got %d)", len(key))
		}
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be positive when rate limiting is enabled")
	}

	return nil
}
