package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AuthPort/server/internal/metrics"
	"github.com/AuthPort/server/internal/storage"
	"github.com/rs/zerolog"
)

// Publisher records domain events and fans them out into deliveries.
type Publisher struct {
	store   storage.Store
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewPublisher creates a publisher.
func NewPublisher(store storage.Store, logger zerolog.Logger, m *metrics.Metrics) *Publisher {
	return &Publisher{store: store, logger: logger, metrics: m}
}

// Publish appends an event and creates one pending delivery per subscribed
// endpoint. An event with no subscribers is still recorded; fan-out simply
// creates zero deliveries.
//
// The payload bytes are stored verbatim and signed byte-for-byte at delivery
// time, so receivers can verify signatures against the exact body they read.
func (p *Publisher) Publish(ctx context.Context, domainID, eventType string, payload []byte) (storage.WebhookEvent, error) {
	if !json.Valid(payload) {
		return storage.WebhookEvent{}, fmt.Errorf("event payload is not valid JSON")
	}

	event, err := p.store.CreateEvent(ctx, storage.WebhookEvent{
		DomainID:   domainID,
		EventType:  eventType,
		Payload:    json.RawMessage(payload),
		PayloadRaw: payload,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return storage.WebhookEvent{}, fmt.Errorf("create event: %w", err)
	}
	if p.metrics != nil {
		p.metrics.EventsTotal.WithLabelValues(eventType).Inc()
	}

	endpoints, err := p.store.ListSubscribedEndpoints(ctx, domainID, eventType)
	if err != nil {
		return event, fmt.Errorf("list subscribed endpoints: %w", err)
	}

	created := 0
	for _, endpoint := range endpoints {
		_, err := p.store.CreateDelivery(ctx, event.ID, endpoint.ID)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateDelivery) {
				continue
			}
			p.logger.Error().
				Err(err).
				Str("eventID", event.ID).
				Str("endpointID", endpoint.ID).
				Msg("failed to create delivery during fan-out")
			continue
		}
		created++
	}
	if p.metrics != nil && created > 0 {
		p.metrics.DeliveriesFanned.Add(float64(created))
	}

	p.logger.Info().
		Str("eventID", event.ID).
		Str("eventType", eventType).
		Str("domainID", domainID).
		Int("deliveries", created).
		Msg("event published")

	return event, nil
}
