package config

import (
	"testing"
	"time"
)

func TestEnvOverrides_TakePrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTHPORT_SERVER_ADDRESS", ":7070")
	t.Setenv("AUTHPORT_DISPATCHER_POLL_INTERVAL", "500ms")
	t.Setenv("AUTHPORT_DISPATCHER_BATCH_SIZE", "5")
	t.Setenv("AUTHPORT_RETRY_MAX_ATTEMPTS", "12")
	t.Setenv("AUTHPORT_RATE_LIMIT_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Address != ":7070" {
		t.Errorf("expected :7070, got %q", cfg.Server.Address)
	}
	if cfg.Dispatcher.PollInterval.Duration != 500*time.Millisecond {
		t.Errorf("expected 500ms poll interval, got %v", cfg.Dispatcher.PollInterval.Duration)
	}
	if cfg.Dispatcher.BatchSize != 5 {
		t.Errorf("expected batch size 5, got %d", cfg.Dispatcher.BatchSize)
	}
	if cfg.Dispatcher.Retry.MaxAttempts != 12 {
		t.Errorf("expected 12 max attempts, got %d", cfg.Dispatcher.Retry.MaxAttempts)
	}
	if cfg.RateLimit.Enabled {
		t.Error("expected rate limiting disabled via env")
	}
}

func TestEnvOverrides_InvalidValuesIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTHPORT_DISPATCHER_BATCH_SIZE", "not-a-number")
	t.Setenv("AUTHPORT_DISPATCHER_POLL_INTERVAL", "soon")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Dispatcher.BatchSize != 50 {
		t.Errorf("expected default batch size for unparseable env, got %d", cfg.Dispatcher.BatchSize)
	}
	if cfg.Dispatcher.PollInterval.Duration != 5*time.Second {
		t.Errorf("expected default poll interval for unparseable env, got %v", cfg.Dispatcher.PollInterval.Duration)
	}
}
