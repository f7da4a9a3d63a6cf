package config

import (
	"os"
	"strconv"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration.
// All env vars use AUTHPORT_ prefix for namespace isolation.
func (c *Config) applyEnvOverrides() {
	// Server config
	setIfEnv(&c.Server.Address, "AUTHPORT_SERVER_ADDRESS")
	setIfEnv(&c.Server.AdminAPIKey, "AUTHPORT_ADMIN_API_KEY")

	// Logging config
	setIfEnv(&c.Logging.Level, "AUTHPORT_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "AUTHPORT_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "AUTHPORT_ENVIRONMENT")

	// Storage config
	setIfEnv(&c.Storage.Backend, "AUTHPORT_STORAGE_BACKEND")
	setIfEnv(&c.Storage.PostgresURL, "AUTHPORT_POSTGRES_URL")
	setIfEnv(&c.Storage.MongoDBURL, "AUTHPORT_MONGODB_URL")
	setIfEnv(&c.Storage.MongoDBDatabase, "AUTHPORT_MONGODB_DATABASE")
	setIntIfEnv(&c.Storage.PostgresPool.MaxOpenConns, "AUTHPORT_POSTGRES_MAX_OPEN_CONNS")
	setIntIfEnv(&c.Storage.PostgresPool.MaxIdleConns, "AUTHPORT_POSTGRES_MAX_IDLE_CONNS")

	// Dispatcher config
	setDurationIfEnv(&c.Dispatcher.PollInterval, "AUTHPORT_DISPATCHER_POLL_INTERVAL")
	setIntIfEnv(&c.Dispatcher.BatchSize, "AUTHPORT_DISPATCHER_BATCH_SIZE")
	setIntIfEnv(&c.Dispatcher.Concurrency, "AUTHPORT_DISPATCHER_CONCURRENCY")
	setDurationIfEnv(&c.Dispatcher.SweepInterval, "AUTHPORT_DISPATCHER_SWEEP_INTERVAL")
	setDurationIfEnv(&c.Dispatcher.StaleThreshold, "AUTHPORT_DISPATCHER_STALE_THRESHOLD")
	setIntIfEnv(&c.Dispatcher.Retry.MaxAttempts, "AUTHPORT_RETRY_MAX_ATTEMPTS")
	setDurationIfEnv(&c.Dispatcher.Retry.InitialInterval, "AUTHPORT_RETRY_INITIAL_INTERVAL")
	setDurationIfEnv(&c.Dispatcher.Retry.MaxInterval, "AUTHPORT_RETRY_MAX_INTERVAL")
	setDurationIfEnv(&c.Dispatcher.Retry.Timeout, "AUTHPORT_RETRY_TIMEOUT")

	// Webhooks config
	setIntIfEnv(&c.Webhooks.MaxResponseBytes, "AUTHPORT_WEBHOOK_MAX_RESPONSE_BYTES")
	setIntIfEnv(&c.Webhooks.DisableAfterFailures, "AUTHPORT_WEBHOOK_DISABLE_AFTER_FAILURES")
	setIfEnv(&c.Webhooks.SecretKey, "AUTHPORT_WEBHOOK_SECRET_KEY")
	setBoolIfEnv(&c.Webhooks.AllowPrivateTargets, "AUTHPORT_WEBHOOK_ALLOW_PRIVATE_TARGETS")

	// Circuit breaker config
	setBoolIfEnv(&c.CircuitBreaker.Enabled, "AUTHPORT_CIRCUIT_BREAKER_ENABLED")

	// Rate limit config
	setBoolIfEnv(&c.RateLimit.Enabled, "AUTHPORT_RATE_LIMIT_ENABLED")
	setIntIfEnv(&c.RateLimit.RequestsPerMinute, "AUTHPORT_RATE_LIMIT_RPM")
}

// setIfEnv assigns the env value to dst when the variable is set and non-empty.
func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setBoolIfEnv assigns a parsed boolean env value to dst.
func setBoolIfEnv(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

// setIntIfEnv assigns a parsed integer env value to dst.
func setIntIfEnv(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

// setDurationIfEnv assigns a parsed duration env value to dst.
func setDurationIfEnv(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			dst.Duration = parsed
		}
	}
}
