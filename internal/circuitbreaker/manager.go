package circuitbreaker

import (
	"sync"
	"time"

	"github.com/AuthPort/server/internal/config"
	"github.com/sony/gobreaker"
)

// Manager maintains one circuit breaker per webhook endpoint.
// Provides bulkhead isolation - a consistently failing endpoint trips its own
// breaker without affecting deliveries to healthy endpoints.
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	config   Config
}

// Config holds circuit breaker configuration shared by all endpoint breakers.
type Config struct {
	// Global enable/disable toggle
	Enabled bool

	// MaxRequests is the maximum number of requests allowed to pass through
	// when the circuit breaker is half-open. Default: 5
	MaxRequests uint32

	// Interval is the cyclic period in closed state to clear the internal counts.
	// If 0, never clears. Default: 60s
	Interval time.Duration

	// Timeout is the period of the open state after which the state becomes half-open.
	// Default: 60s
	Timeout time.Duration

	// Trip thresholds: consecutive failures, or failure ratio over a minimum
	// request count, whichever fires first.
	ConsecutiveFailures uint32
	FailureRatio        float64
	MinRequests         uint32

	// OnStateChange is invoked on every breaker state transition.
	OnStateChange func(endpointID string, from, to gobreaker.State)
}

// NewManagerFromConfig creates a circuit breaker manager from application config.
func NewManagerFromConfig(cfg config.CircuitBreakerConfig, onStateChange func(endpointID string, from, to gobreaker.State)) *Manager {
	return NewManager(Config{
		Enabled:             cfg.Enabled,
		MaxRequests:         cfg.MaxRequests,
		Interval:            cfg.Interval.Duration,
		Timeout:             cfg.Timeout.Duration,
		ConsecutiveFailures: cfg.ConsecutiveFailures,
		FailureRatio:        cfg.FailureRatio,
		MinRequests:         cfg.MinRequests,
		OnStateChange:       onStateChange,
	})
}

// NewManager creates a circuit breaker manager with the given configuration.
func NewManager(cfg Config) *Manager {
	return &Manager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		config:   cfg,
	}
}

// Execute wraps a delivery attempt with the endpoint's circuit breaker.
// If circuit breakers are disabled, executes directly.
func (m *Manager) Execute(endpointID string, fn func() (interface{}, error)) (interface{}, error) {
	if !m.config.Enabled {
		// Circuit breaker disabled - pass through
		return fn()
	}
	return m.breaker(endpointID).Execute(fn)
}

// IsOpen reports whether err is the breaker refusing the call rather than the
// call itself failing.
func IsOpen(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}

// State returns the current state of an endpoint's circuit breaker.
// Returns "disabled" if circuit breakers are not enabled.
func (m *Manager) State(endpointID string) string {
	if !m.config.Enabled {
		return "disabled"
	}
	return m.breaker(endpointID).State().String()
}

// Counts returns the current counts for an endpoint's circuit breaker.
func (m *Manager) Counts(endpointID string) Counts {
	if !m.config.Enabled {
		return Counts{}
	}

	c := m.breaker(endpointID).Counts()
	return Counts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}

// Forget drops the breaker for a deleted endpoint.
func (m *Manager) Forget(endpointID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakers, endpointID)
}

// Counts represents circuit breaker statistics.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// breaker returns the endpoint's breaker, creating it on first use.
func (m *Manager) breaker(endpointID string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[endpointID]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(m.settings(endpointID))
	m.breakers[endpointID] = b
	return b
}

// settings converts our config to gobreaker.Settings.
func (m *Manager) settings(endpointID string) gobreaker.Settings {
	cfg := m.config
	return gobreaker.Settings{
		Name:        endpointID,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if we've hit consecutive failures threshold
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}

			// Trip if we've hit failure ratio threshold (and have minimum requests)
			if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
				if counts.Requests >= cfg.MinRequests {
					failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
					if failureRate >= cfg.FailureRatio {
						return true
					}
				}
			}

			return false
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}
}

// DefaultConfig returns sensible defaults for circuit breaker configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		MaxRequests:         5,
		Interval:            60 * time.Second,
		Timeout:             60 * time.Second,
		ConsecutiveFailures: 10,
		FailureRatio:        0.7,
		MinRequests:         20,
	}
}
