package webhooks

import (
	"errors"
	"testing"
	"time"

	"github.com/AuthPort/server/internal/config"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		transportErr error
		want         Verdict
	}{
		{"200 ok", 200, nil, VerdictSuccess},
		{"201 created", 201, nil, VerdictSuccess},
		{"204 no content", 204, nil, VerdictSuccess},
		{"400 bad request", 400, nil, VerdictTerminal},
		{"401 unauthorized", 401, nil, VerdictTerminal},
		{"403 forbidden", 403, nil, VerdictTerminal},
		{"404 not found", 404, nil, VerdictTerminal},
		{"410 gone", 410, nil, VerdictTerminal},
		{"408 request timeout", 408, nil, VerdictRetry},
		{"409 conflict", 409, nil, VerdictRetry},
		{"429 rate limited", 429, nil, VerdictRetry},
		{"500 server error", 500, nil, VerdictRetry},
		{"502 bad gateway", 502, nil, VerdictRetry},
		{"503 unavailable", 503, nil, VerdictRetry},
		{"transport failure", 0, errors.New("connection refused"), VerdictRetry},
		{"3xx redirect not followed", 301, nil, VerdictRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.status, tt.transportErr); got != tt.want {
				t.Errorf("Classify(%d, %v) = %s, want %s", tt.status, tt.transportErr, got, tt.want)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	cfg := config.RetryConfig{
		InitialInterval: config.Duration{Duration: 30 * time.Second},
		MaxInterval:     config.Duration{Duration: 24 * time.Hour},
		Multiplier:      2.0,
	}

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 30 * time.Second},
		{2, 60 * time.Second},
		{3, 2 * time.Minute},
		{4, 4 * time.Minute},
		{8, 64 * time.Minute},
		{20, 24 * time.Hour}, // capped
	}

	for _, tt := range tests {
		if got := Backoff(cfg, tt.attempts); got != tt.want {
			t.Errorf("Backoff(attempts=%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestBackoffCap(t *testing.T) {
	cfg := config.RetryConfig{
		InitialInterval: config.Duration{Duration: time.Minute},
		MaxInterval:     config.Duration{Duration: 5 * time.Minute},
		Multiplier:      3.0,
	}

	if got := Backoff(cfg, 3); got != 5*time.Minute {
		t.Errorf("expected cap at 5m, got %v", got)
	}
}
