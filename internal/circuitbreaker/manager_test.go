package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestExecuteDisabledPassesThrough(t *testing.T) {
	m := NewManager(Config{Enabled: false})

	called := false
	_, err := m.Execute("ep_1", func() (interface{}, error) {
		called = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !called {
		t.Error("expected function to be called")
	}
	if m.State("ep_1") != "disabled" {
		t.Errorf("expected state disabled, got %s", m.State("ep_1"))
	}
}

func TestBreakerTripsPerEndpoint(t *testing.T) {
	var transitions []string
	cfg := DefaultConfig()
	cfg.ConsecutiveFailures = 3
	cfg.FailureRatio = 0
	cfg.OnStateChange = func(endpointID string, from, to gobreaker.State) {
		transitions = append(transitions, endpointID+":"+to.String())
	}
	m := NewManager(cfg)

	fail := func() (interface{}, error) { return nil, errors.New("boom") }
	for i := 0; i < 3; i++ {
		if _, err := m.Execute("ep_bad", fail); err == nil {
			t.Fatal("expected failure")
		}
	}

	_, err := m.Execute("ep_bad", fail)
	if !IsOpen(err) {
		t.Errorf("expected open breaker error, got %v", err)
	}
	if m.State("ep_bad") != gobreaker.StateOpen.String() {
		t.Errorf("expected ep_bad open, got %s", m.State("ep_bad"))
	}

	// A different endpoint is unaffected.
	if _, err := m.Execute("ep_good", func() (interface{}, error) { return nil, nil }); err != nil {
		t.Errorf("expected ep_good to pass, got %v", err)
	}
	if m.State("ep_good") != gobreaker.StateClosed.String() {
		t.Errorf("expected ep_good closed, got %s", m.State("ep_good"))
	}

	if len(transitions) == 0 || transitions[0] != "ep_bad:open" {
		t.Errorf("expected open transition for ep_bad, got %v", transitions)
	}
}

func TestCountsTrackFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConsecutiveFailures = 100
	m := NewManager(cfg)

	m.Execute("ep_1", func() (interface{}, error) { return nil, nil })
	m.Execute("ep_1", func() (interface{}, error) { return nil, errors.New("boom") })

	counts := m.Counts("ep_1")
	if counts.Requests != 2 {
		t.Errorf("expected 2 requests, got %d", counts.Requests)
	}
	if counts.TotalFailures != 1 {
		t.Errorf("expected 1 failure, got %d", counts.TotalFailures)
	}
}

func TestForget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConsecutiveFailures = 1
	cfg.Timeout = time.Hour
	m := NewManager(cfg)

	m.Execute("ep_1", func() (interface{}, error) { return nil, errors.New("boom") })
	if m.State("ep_1") != gobreaker.StateOpen.String() {
		t.Fatalf("expected open, got %s", m.State("ep_1"))
	}

	m.Forget("ep_1")
	if m.State("ep_1") != gobreaker.StateClosed.String() {
		t.Errorf("expected fresh breaker after Forget, got %s", m.State("ep_1"))
	}
}
