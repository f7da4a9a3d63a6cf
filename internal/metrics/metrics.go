package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the webhook delivery engine.
type Metrics struct {
	// Delivery metrics
	DeliveriesTotal  *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
	RetriesTotal     *prometheus.CounterVec
	AbandonedTotal   *prometheus.CounterVec

	// Security metrics
	SSRFBlockedTotal prometheus.Counter

	// Claim/queue metrics
	ClaimBatchSize      prometheus.Histogram
	StaleReclaimedTotal prometheus.Counter
	QueueDepth          prometheus.Gauge

	// Fan-out metrics
	EventsTotal     *prometheus.CounterVec
	DeliveriesFanned prometheus.Counter

	// Circuit breaker metrics
	BreakerOpenTotal *prometheus.CounterVec

	// Database metrics
	DBQueryDuration     *prometheus.HistogramVec
	DBConnectionsActive prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		DeliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authport_webhook_deliveries_total",
				Help: "Total number of webhook delivery attempts",
			},
			[]string{"event_type", "outcome"},
		),
		DeliveryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authport_webhook_delivery_duration_seconds",
				Help:    "Time taken to deliver a webhook (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"event_type", "outcome"},
		),
		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authport_webhook_retries_total",
				Help: "Total number of delivery attempts scheduled for retry",
			},
			[]string{"event_type"},
		),
		AbandonedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authport_webhook_abandoned_total",
				Help: "Total number of deliveries terminally abandoned",
			},
			[]string{"reason"},
		),
		SSRFBlockedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "authport_webhook_ssrf_blocked_total",
				Help: "Total number of deliveries blocked because the endpoint resolved to a private address",
			},
		),
		ClaimBatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "authport_webhook_claim_batch_size",
				Help:    "Number of deliveries claimed per poll tick",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		StaleReclaimedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "authport_webhook_stale_reclaimed_total",
				Help: "Total number of in-progress deliveries rescued by the stale sweep",
			},
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "authport_webhook_queue_depth",
				Help: "Number of pending deliveries due for attempt at last poll",
			},
		),
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authport_webhook_events_total",
				Help: "Total number of webhook events created",
			},
			[]string{"event_type"},
		),
		DeliveriesFanned: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "authport_webhook_deliveries_fanned_total",
				Help: "Total number of delivery rows created at fan-out",
			},
		),
		BreakerOpenTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authport_webhook_breaker_open_total",
				Help: "Total number of delivery attempts short-circuited by an open endpoint breaker",
			},
			[]string{"endpoint_id"},
		),
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authport_db_query_duration_seconds",
				Help:    "Duration of storage operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"operation"},
		),
		DBConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "authport_db_connections_active",
				Help: "Number of active database connections",
			},
		),
	}
}

// ObserveDelivery records the outcome of one delivery attempt.
func (m *Metrics) ObserveDelivery(eventType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(eventType, outcome).Inc()
	m.DeliveryDuration.WithLabelValues(eventType, outcome).Observe(duration.Seconds())
}

// ObserveRetry records that a delivery was rescheduled.
func (m *Metrics) ObserveRetry(eventType string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(eventType).Inc()
}

// ObserveAbandoned records a terminal delivery failure.
func (m *Metrics) ObserveAbandoned(reason string) {
	if m == nil {
		return
	}
	m.AbandonedTotal.WithLabelValues(reason).Inc()
}

// ObserveDBQuery records the duration of a storage operation.
func (m *Metrics) ObserveDBQuery(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
