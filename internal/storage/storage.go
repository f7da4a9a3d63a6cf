package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AuthPort/server/internal/config"
)

// ErrNotFound is returned when a requested entity is missing from the store.
var ErrNotFound = errors.New("storage: not found")

// ErrDuplicateDelivery is returned when a delivery already exists for the same
// (event, endpoint) pair. Fan-out creates each pairing exactly once.
var ErrDuplicateDelivery = errors.New("storage: delivery already exists for event and endpoint")

// ErrTerminalDelivery is returned when an update targets a succeeded or
// abandoned delivery. Terminal rows never change again.
var ErrTerminalDelivery = errors.New("storage: delivery is terminal")

// Store captures the persistence requirements of the webhook delivery engine.
//
// # Claim protocol
//
// ClaimPendingBatch is the single correctness-critical primitive: it must
// atomically select due pending deliveries, transition them to in_progress
// with locked_at set, and return them joined with endpoint and event data.
// Concurrent callers (same or different processes) must never receive the
// same row; implementations use a locking read that skips rows claimed by a
// concurrent caller rather than blocking on them.
type Store interface {
	// Event log (append-only; events are never mutated or deleted)
	CreateEvent(ctx context.Context, event WebhookEvent) (WebhookEvent, error)
	GetEvent(ctx context.Context, eventID string) (WebhookEvent, error)

	// Endpoint registry
	CreateEndpoint(ctx context.Context, endpoint WebhookEndpoint) (WebhookEndpoint, error)
	GetEndpoint(ctx context.Context, endpointID string) (WebhookEndpoint, error)
	UpdateEndpoint(ctx context.Context, endpoint WebhookEndpoint) error
	UpdateEndpointSecret(ctx context.Context, endpointID string, secretEncrypted []byte) error
	DeleteEndpoint(ctx context.Context, endpointID string) error
	ListEndpoints(ctx context.Context, domainID string) ([]WebhookEndpoint, error)
	// ListSubscribedEndpoints returns active endpoints in the domain whose
	// subscriptions contain eventType or the wildcard.
	ListSubscribedEndpoints(ctx context.Context, domainID, eventType string) ([]WebhookEndpoint, error)
	// RecordEndpointSuccess resets consecutive_failures and stamps last_success_at.
	RecordEndpointSuccess(ctx context.Context, endpointID string, at time.Time) error
	// RecordEndpointFailure increments consecutive_failures, stamps
	// last_failure_at, and deactivates the endpoint once the count reaches
	// disableAfter (0 disables the ceiling). Returns the new count.
	RecordEndpointFailure(ctx context.Context, endpointID string, at time.Time, disableAfter int) (int, error)

	// Delivery queue
	CreateDelivery(ctx context.Context, eventID, endpointID string) (WebhookDelivery, error)
	GetDelivery(ctx context.Context, deliveryID string) (WebhookDelivery, error)
	ClaimPendingBatch(ctx context.Context, limit int) ([]ClaimedDelivery, error)
	// MarkDeliverySucceeded finalizes a claimed delivery (terminal).
	MarkDeliverySucceeded(ctx context.Context, deliveryID string, outcome AttemptOutcome) error
	// MarkDeliveryRetrying returns a claimed delivery to pending with the
	// attempt counted and the next attempt scheduled.
	MarkDeliveryRetrying(ctx context.Context, deliveryID string, outcome AttemptOutcome, nextAttemptAt time.Time) error
	// MarkDeliveryAbandoned finalizes a claimed delivery as failed (terminal).
	MarkDeliveryAbandoned(ctx context.Context, deliveryID string, outcome AttemptOutcome) error
	// ReclaimStaleDeliveries returns in_progress rows locked before olderThan
	// to pending, counting the lost attempt. Returns the number of rows rescued.
	ReclaimStaleDeliveries(ctx context.Context, olderThan time.Time) (int64, error)
	// RetryDelivery resets an abandoned delivery to pending for manual retry
	// (admin operation).
	RetryDelivery(ctx context.Context, deliveryID string) error
	ListDeliveriesByEvent(ctx context.Context, eventID string, limit int) ([]WebhookDelivery, error)
	ListDeliveriesByEndpoint(ctx context.Context, endpointID string, limit int) ([]WebhookDelivery, error)
	ListDeliveries(ctx context.Context, status DeliveryStatus, limit int) ([]WebhookDelivery, error)
	// CountDueDeliveries reports pending rows due now (queue depth gauge).
	CountDueDeliveries(ctx context.Context) (int64, error)

	Close() error
}

// NewStore creates a Store instance based on the provided configuration.
func NewStore(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	return NewStoreWithDB(ctx, cfg, nil)
}

// NewStoreWithDB creates a Store instance with an optional shared database pool.
// If sharedDB is non-nil for the postgres backend it is used instead of opening
// a new connection pool.
func NewStoreWithDB(ctx context.Context, cfg config.StorageConfig, sharedDB *sql.DB) (Store, error) {
	switch cfg.Backend {
	case "memory":
		// Deliveries do not survive a restart. Development and tests only.
		return NewMemoryStore(), nil
	case "postgres":
		var store *PostgresStore
		var err error
		if sharedDB != nil {
			store, err = NewPostgresStoreWithDB(sharedDB)
		} else {
			store, err = NewPostgresStore(cfg.PostgresURL, cfg.PostgresPool)
		}
		if err != nil {
			return nil, err
		}
		return store.WithTableNames(cfg.EventsTableName, cfg.EndpointsTableName, cfg.DeliveriesTableName), nil
	case "mongodb":
		return NewMongoStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", cfg.Backend)
	}
}
