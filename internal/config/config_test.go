package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Storage.Backend != "memory" {
		t.Errorf("expected memory backend by default, got %q", cfg.Storage.Backend)
	}
	if cfg.Dispatcher.PollInterval.Duration != 5*time.Second {
		t.Errorf("expected 5s poll interval, got %v", cfg.Dispatcher.PollInterval.Duration)
	}
	if cfg.Dispatcher.BatchSize != 50 {
		t.Errorf("expected batch size 50, got %d", cfg.Dispatcher.BatchSize)
	}
	if cfg.Dispatcher.Retry.MaxAttempts != 8 {
		t.Errorf("expected 8 max attempts, got %d", cfg.Dispatcher.Retry.MaxAttempts)
	}
	if cfg.Dispatcher.Retry.MaxInterval.Duration != 24*time.Hour {
		t.Errorf("expected 24h max interval, got %v", cfg.Dispatcher.Retry.MaxInterval.Duration)
	}
	if cfg.Webhooks.MaxResponseBytes != 1024 {
		t.Errorf("expected 1024 response cap, got %d", cfg.Webhooks.MaxResponseBytes)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)

	raw := `
server:
  address: ":9090"
storage:
  backend: postgres
  postgres_url: "postgres://localhost/authport?sslmode=disable"
dispatcher:
  poll_interval: 2s
  batch_size: 25
  retry:
    max_attempts: 3
    initial_interval: 10s
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Address != ":9090" {
		t.Errorf("expected :9090, got %q", cfg.Server.Address)
	}
	if cfg.Dispatcher.PollInterval.Duration != 2*time.Second {
		t.Errorf("expected 2s poll interval, got %v", cfg.Dispatcher.PollInterval.Duration)
	}
	if cfg.Dispatcher.BatchSize != 25 {
		t.Errorf("expected batch size 25, got %d", cfg.Dispatcher.BatchSize)
	}
	if cfg.Dispatcher.Retry.MaxAttempts != 3 {
		t.Errorf("expected 3 max attempts, got %d", cfg.Dispatcher.Retry.MaxAttempts)
	}
	// Untouched sections keep their defaults.
	if cfg.Dispatcher.SweepInterval.Duration != 60*time.Second {
		t.Errorf("expected default sweep interval, got %v", cfg.Dispatcher.SweepInterval.Duration)
	}
}

func TestLoad_BackendAutoDetect(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTHPORT_MONGODB_URL", "mongodb://localhost:27017")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Backend != "mongodb" {
		t.Errorf("expected mongodb backend auto-detected, got %q", cfg.Storage.Backend)
	}
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTHPORT_STORAGE_BACKEND", "postgres")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for postgres backend without URL")
	}
	if !strings.Contains(err.Error(), "storage.postgres_url") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_InvalidSecretKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTHPORT_WEBHOOK_SECRET_KEY", "nothex")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for non-hex secret key")
	}
}

func TestLoad_StaleThresholdMustExceedTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTHPORT_DISPATCHER_STALE_THRESHOLD", "5s")
	t.Setenv("AUTHPORT_RETRY_TIMEOUT", "10s")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error when stale threshold <= retry timeout")
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	clearEnv(t)

	raw := `
dispatcher:
  stale_threshold: 300
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// Bare numbers are interpreted as seconds.
	if cfg.Dispatcher.StaleThreshold.Duration != 300*time.Second {
		t.Errorf("expected 300s, got %v", cfg.Dispatcher.StaleThreshold.Duration)
	}
}

// clearEnv removes all AUTHPORT_ variables so tests are hermetic.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "AUTHPORT_") {
			key := strings.SplitN(env, "=", 2)[0]
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}
