package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps all state in process memory behind one mutex.
// Claim exclusivity holds within a single process only; the postgres and
// mongodb backends provide it across processes.
type MemoryStore struct {
	mu         sync.RWMutex
	events     map[string]WebhookEvent
	endpoints  map[string]WebhookEndpoint
	deliveries map[string]WebhookDelivery
	pairs      map[string]string // eventID+"/"+endpointID -> deliveryID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:     make(map[string]WebhookEvent),
		endpoints:  make(map[string]WebhookEndpoint),
		deliveries: make(map[string]WebhookDelivery),
		pairs:      make(map[string]string),
	}
}

// CreateEvent appends an event to the log.
func (m *MemoryStore) CreateEvent(ctx context.Context, event WebhookEvent) (WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.ID == "" {
		event.ID = generateEventID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if _, exists := m.events[event.ID]; exists {
		return WebhookEvent{}, fmt.Errorf("event %s already exists", event.ID)
	}

	m.events[event.ID] = event
	return event, nil
}

// GetEvent retrieves an event by ID.
func (m *MemoryStore) GetEvent(ctx context.Context, eventID string) (WebhookEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	event, ok := m.events[eventID]
	if !ok {
		return WebhookEvent{}, ErrNotFound
	}
	return event, nil
}

// CreateEndpoint registers a delivery target.
func (m *MemoryStore) CreateEndpoint(ctx context.Context, endpoint WebhookEndpoint) (WebhookEndpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if endpoint.ID == "" {
		endpoint.ID = generateEndpointID()
	}
	now := time.Now().UTC()
	if endpoint.CreatedAt.IsZero() {
		endpoint.CreatedAt = now
	}
	endpoint.UpdatedAt = now

	m.endpoints[endpoint.ID] = endpoint
	return endpoint, nil
}

// GetEndpoint retrieves an endpoint by ID.
func (m *MemoryStore) GetEndpoint(ctx context.Context, endpointID string) (WebhookEndpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	endpoint, ok := m.endpoints[endpointID]
	if !ok {
		return WebhookEndpoint{}, ErrNotFound
	}
	return endpoint, nil
}

// UpdateEndpoint replaces the tenant-configurable fields of an endpoint.
func (m *MemoryStore) UpdateEndpoint(ctx context.Context, endpoint WebhookEndpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.endpoints[endpoint.ID]
	if !ok {
		return ErrNotFound
	}

	existing.URL = endpoint.URL
	existing.Description = endpoint.Description
	existing.EventTypes = endpoint.EventTypes
	existing.IsActive = endpoint.IsActive
	existing.UpdatedAt = time.Now().UTC()
	m.endpoints[endpoint.ID] = existing
	return nil
}

// UpdateEndpointSecret rotates the encrypted signing secret.
func (m *MemoryStore) UpdateEndpointSecret(ctx context.Context, endpointID string, secretEncrypted []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	endpoint, ok := m.endpoints[endpointID]
	if !ok {
		return ErrNotFound
	}

	endpoint.SecretEncrypted = secretEncrypted
	endpoint.UpdatedAt = time.Now().UTC()
	m.endpoints[endpointID] = endpoint
	return nil
}

// DeleteEndpoint removes an endpoint and its deliveries.
func (m *MemoryStore) DeleteEndpoint(ctx context.Context, endpointID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.endpoints[endpointID]; !ok {
		return ErrNotFound
	}
	delete(m.endpoints, endpointID)

	for id, d := range m.deliveries {
		if d.EndpointID == endpointID {
			delete(m.deliveries, id)
			delete(m.pairs, d.EventID+"/"+endpointID)
		}
	}
	return nil
}

// ListEndpoints lists all endpoints in a domain.
func (m *MemoryStore) ListEndpoints(ctx context.Context, domainID string) ([]WebhookEndpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var endpoints []WebhookEndpoint
	for _, ep := range m.endpoints {
		if ep.DomainID == domainID {
			endpoints = append(endpoints, ep)
		}
	}

	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].CreatedAt.Before(endpoints[j].CreatedAt)
	})
	return endpoints, nil
}

// ListSubscribedEndpoints returns active endpoints subscribed to the event type.
func (m *MemoryStore) ListSubscribedEndpoints(ctx context.Context, domainID, eventType string) ([]WebhookEndpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []WebhookEndpoint
	for _, ep := range m.endpoints {
		if ep.DomainID == domainID && ep.IsActive && ep.SubscribesTo(eventType) {
			matched = append(matched, ep)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

// RecordEndpointSuccess resets the failure streak after a delivered webhook.
func (m *MemoryStore) RecordEndpointSuccess(ctx context.Context, endpointID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	endpoint, ok := m.endpoints[endpointID]
	if !ok {
		return ErrNotFound
	}

	endpoint.ConsecutiveFailures = 0
	endpoint.LastSuccessAt = &at
	endpoint.UpdatedAt = at
	m.endpoints[endpointID] = endpoint
	return nil
}

// RecordEndpointFailure extends the failure streak, deactivating the endpoint
// once the ceiling is reached.
func (m *MemoryStore) RecordEndpointFailure(ctx context.Context, endpointID string, at time.Time, disableAfter int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	endpoint, ok := m.endpoints[endpointID]
	if !ok {
		return 0, ErrNotFound
	}

	endpoint.ConsecutiveFailures++
	endpoint.LastFailureAt = &at
	endpoint.UpdatedAt = at
	if disableAfter > 0 && endpoint.ConsecutiveFailures >= disableAfter {
		endpoint.IsActive = false
	}
	m.endpoints[endpointID] = endpoint
	return endpoint.ConsecutiveFailures, nil
}

// CreateDelivery creates one pending delivery for an (event, endpoint) pair.
func (m *MemoryStore) CreateDelivery(ctx context.Context, eventID, endpointID string) (WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; !ok {
		return WebhookDelivery{}, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	if _, ok := m.endpoints[endpointID]; !ok {
		return WebhookDelivery{}, fmt.Errorf("endpoint %s: %w", endpointID, ErrNotFound)
	}

	pairKey := eventID + "/" + endpointID
	if _, exists := m.pairs[pairKey]; exists {
		return WebhookDelivery{}, ErrDuplicateDelivery
	}

	now := time.Now().UTC()
	delivery := WebhookDelivery{
		ID:            generateDeliveryID(),
		EventID:       eventID,
		EndpointID:    endpointID,
		Status:        DeliveryStatusPending,
		AttemptCount:  0,
		NextAttemptAt: now,
		CreatedAt:     now,
	}

	m.deliveries[delivery.ID] = delivery
	m.pairs[pairKey] = delivery.ID
	return delivery, nil
}

// GetDelivery retrieves a delivery by ID.
func (m *MemoryStore) GetDelivery(ctx context.Context, deliveryID string) (WebhookDelivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	delivery, ok := m.deliveries[deliveryID]
	if !ok {
		return WebhookDelivery{}, ErrNotFound
	}
	return delivery, nil
}

// ClaimPendingBatch atomically claims up to limit due deliveries.
// The whole selection and transition runs under one lock, so two concurrent
// callers never receive the same row.
func (m *MemoryStore) ClaimPendingBatch(ctx context.Context, limit int) ([]ClaimedDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	var due []WebhookDelivery
	for _, d := range m.deliveries {
		if d.Status == DeliveryStatusPending && !d.NextAttemptAt.After(now) {
			due = append(due, d)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]ClaimedDelivery, 0, len(due))
	for _, d := range due {
		endpoint, ok := m.endpoints[d.EndpointID]
		if !ok {
			continue
		}
		event, ok := m.events[d.EventID]
		if !ok {
			continue
		}

		lockedAt := now
		d.Status = DeliveryStatusInProgress
		d.LockedAt = &lockedAt
		m.deliveries[d.ID] = d

		claimed = append(claimed, ClaimedDelivery{
			Delivery:        d,
			EndpointURL:     endpoint.URL,
			SecretEncrypted: endpoint.SecretEncrypted,
			EventType:       event.EventType,
			PayloadRaw:      event.PayloadRaw,
			EventCreatedAt:  event.CreatedAt,
		})
	}

	return claimed, nil
}

// MarkDeliverySucceeded finalizes a claimed delivery as delivered.
func (m *MemoryStore) MarkDeliverySucceeded(ctx context.Context, deliveryID string, outcome AttemptOutcome) error {
	return m.resolve(deliveryID, outcome, DeliveryStatusSucceeded, time.Time{})
}

// MarkDeliveryRetrying returns a claimed delivery to pending with the attempt counted.
func (m *MemoryStore) MarkDeliveryRetrying(ctx context.Context, deliveryID string, outcome AttemptOutcome, nextAttemptAt time.Time) error {
	return m.resolve(deliveryID, outcome, DeliveryStatusPending, nextAttemptAt)
}

// MarkDeliveryAbandoned finalizes a claimed delivery as terminally failed.
func (m *MemoryStore) MarkDeliveryAbandoned(ctx context.Context, deliveryID string, outcome AttemptOutcome) error {
	return m.resolve(deliveryID, outcome, DeliveryStatusAbandoned, time.Time{})
}

// resolve applies the outcome of one attempt to an in_progress row.
func (m *MemoryStore) resolve(deliveryID string, outcome AttemptOutcome, to DeliveryStatus, nextAttemptAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delivery, ok := m.deliveries[deliveryID]
	if !ok {
		return ErrNotFound
	}
	if delivery.Status.IsTerminal() {
		return ErrTerminalDelivery
	}

	now := time.Now().UTC()
	delivery.Status = to
	delivery.AttemptCount++
	delivery.LockedAt = nil
	delivery.LastResponseStatus = outcome.ResponseStatus
	delivery.LastResponseBody = outcome.ResponseBody
	delivery.LastError = outcome.Error

	switch to {
	case DeliveryStatusPending:
		delivery.NextAttemptAt = nextAttemptAt
	case DeliveryStatusSucceeded, DeliveryStatusAbandoned:
		delivery.CompletedAt = &now
	}

	m.deliveries[deliveryID] = delivery
	return nil
}

// ReclaimStaleDeliveries rescues in_progress rows abandoned by a crashed worker.
func (m *MemoryStore) ReclaimStaleDeliveries(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var reclaimed int64
	for id, d := range m.deliveries {
		if d.Status != DeliveryStatusInProgress || d.LockedAt == nil || !d.LockedAt.Before(olderThan) {
			continue
		}

		d.Status = DeliveryStatusPending
		d.AttemptCount++
		d.LockedAt = nil
		d.NextAttemptAt = time.Now().UTC()
		m.deliveries[id] = d
		reclaimed++
	}

	return reclaimed, nil
}

// RetryDelivery resets an abandoned delivery to pending (admin operation).
func (m *MemoryStore) RetryDelivery(ctx context.Context, deliveryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delivery, ok := m.deliveries[deliveryID]
	if !ok {
		return ErrNotFound
	}
	if delivery.Status != DeliveryStatusAbandoned {
		return fmt.Errorf("delivery %s is %s, only abandoned deliveries can be retried", deliveryID, delivery.Status)
	}

	delivery.Status = DeliveryStatusPending
	delivery.NextAttemptAt = time.Now().UTC()
	delivery.CompletedAt = nil
	delivery.LastError = ""
	m.deliveries[deliveryID] = delivery
	return nil
}

// ListDeliveriesByEvent lists deliveries created from one event.
func (m *MemoryStore) ListDeliveriesByEvent(ctx context.Context, eventID string, limit int) ([]WebhookDelivery, error) {
	return m.list(func(d WebhookDelivery) bool { return d.EventID == eventID }, limit), nil
}

// ListDeliveriesByEndpoint lists deliveries targeting one endpoint.
func (m *MemoryStore) ListDeliveriesByEndpoint(ctx context.Context, endpointID string, limit int) ([]WebhookDelivery, error) {
	return m.list(func(d WebhookDelivery) bool { return d.EndpointID == endpointID }, limit), nil
}

// ListDeliveries lists deliveries with an optional status filter.
func (m *MemoryStore) ListDeliveries(ctx context.Context, status DeliveryStatus, limit int) ([]WebhookDelivery, error) {
	return m.list(func(d WebhookDelivery) bool { return status == "" || d.Status == status }, limit), nil
}

func (m *MemoryStore) list(match func(WebhookDelivery) bool, limit int) []WebhookDelivery {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var deliveries []WebhookDelivery
	for _, d := range m.deliveries {
		if match(d) {
			deliveries = append(deliveries, d)
		}
	}

	sort.Slice(deliveries, func(i, j int) bool {
		return deliveries[i].CreatedAt.After(deliveries[j].CreatedAt)
	})
	if limit > 0 && len(deliveries) > limit {
		deliveries = deliveries[:limit]
	}
	return deliveries
}

// CountDueDeliveries reports pending deliveries due for attempt now.
func (m *MemoryStore) CountDueDeliveries(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now().UTC()
	var due int64
	for _, d := range m.deliveries {
		if d.Status == DeliveryStatusPending && !d.NextAttemptAt.After(now) {
			due++
		}
	}
	return due, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// generateEventID creates a unique event identifier (e.g. "evt_6f1c…").
func generateEventID() string {
	return "evt_" + uuid.NewString()
}

// generateEndpointID creates a unique endpoint identifier.
func generateEndpointID() string {
	return "ep_" + uuid.NewString()
}

// generateDeliveryID creates a unique delivery identifier.
func generateDeliveryID() string {
	return "del_" + uuid.NewString()
}
