package webhooks

import (
	"net/http"
	"time"

	"github.com/AuthPort/server/internal/config"
)

// Verdict classifies one delivery attempt.
type Verdict int

const (
	// VerdictSuccess means the endpoint accepted the webhook.
	VerdictSuccess Verdict = iota
	// VerdictRetry means the failure looks transient and the delivery should
	// be attempted again.
	VerdictRetry
	// VerdictTerminal means retrying cannot help (the endpoint rejected the
	// request outright).
	VerdictTerminal
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictRetry:
		return "retry"
	default:
		return "terminal"
	}
}

// Classify maps an attempt result to a verdict. statusCode is 0 when the
// request never produced a response (transport failure, timeout).
//
// Any 2xx is success. Transport failures and 5xx are retryable. 4xx means the
// endpoint understood the request and rejected it, so retrying with the same
// payload is pointless, except for 408 (request timeout), 409 (transient
// conflict), and 429 (rate limited), which invite another attempt.
func Classify(statusCode int, transportErr error) Verdict {
	if transportErr != nil {
		return VerdictRetry
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return VerdictSuccess
	case statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusConflict,
		statusCode == http.StatusTooManyRequests:
		return VerdictRetry
	case statusCode >= 400 && statusCode < 500:
		return VerdictTerminal
	default:
		return VerdictRetry
	}
}

// Backoff returns the delay before the next attempt, given how many attempts
// have been made so far. Exponential from the initial interval, capped at the
// maximum.
func Backoff(cfg config.RetryConfig, attempts int) time.Duration {
	backoff := cfg.InitialInterval.Duration
	for i := 1; i < attempts; i++ {
		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if backoff > cfg.MaxInterval.Duration {
			return cfg.MaxInterval.Duration
		}
	}
	if backoff > cfg.MaxInterval.Duration {
		return cfg.MaxInterval.Duration
	}
	return backoff
}
