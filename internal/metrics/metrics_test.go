package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveDelivery("user.created", "success", 250*time.Millisecond)
	m.ObserveRetry("user.created")
	m.ObserveAbandoned("ssrf_blocked")
	m.SSRFBlockedTotal.Inc()
	m.StaleReclaimedTotal.Inc()
	m.QueueDepth.Set(7)

	if got := testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("user.created", "success")); got != 1 {
		t.Errorf("expected 1 delivery, got %v", got)
	}
	if got := testutil.ToFloat64(m.RetriesTotal.WithLabelValues("user.created")); got != 1 {
		t.Errorf("expected 1 retry, got %v", got)
	}
	if got := testutil.ToFloat64(m.AbandonedTotal.WithLabelValues("ssrf_blocked")); got != 1 {
		t.Errorf("expected 1 abandoned, got %v", got)
	}
	if got := testutil.ToFloat64(m.QueueDepth); got != 7 {
		t.Errorf("expected queue depth 7, got %v", got)
	}
}

func TestObserve_NilReceiverSafe(t *testing.T) {
	var m *Metrics
	// Must not panic: metrics are optional in tests and tools.
	m.ObserveDelivery("user.created", "failed", time.Second)
	m.ObserveRetry("user.created")
	m.ObserveAbandoned("max_attempts")
	m.ObserveDBQuery("claim_pending_batch", time.Millisecond)
}
