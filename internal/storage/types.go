package storage

import (
	"encoding/json"
	"time"
)

// DeliveryStatus represents the current state of a delivery in the queue.
type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"     // Waiting for an attempt
	DeliveryStatusInProgress DeliveryStatus = "in_progress" // Claimed by a worker
	DeliveryStatusSucceeded  DeliveryStatus = "succeeded"   // Delivered (terminal)
	DeliveryStatusAbandoned  DeliveryStatus = "abandoned"   // Given up (terminal)
)

// IsTerminal reports whether no further attempts will be made.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusSucceeded || s == DeliveryStatusAbandoned
}

// EventTypeWildcard subscribes an endpoint to every event type.
const EventTypeWildcard = "*"

// WebhookEvent is an immutable domain fact. PayloadRaw holds the exact bytes
// that were signed; Payload is the same document parsed for querying. They are
// stored separately because re-serializing JSON can reorder keys and
// invalidate signatures computed over the original bytes.
type WebhookEvent struct {
	ID         string          `json:"id"`
	DomainID   string          `json:"domainId"`
	EventType  string          `json:"eventType"` // e.g. "user.created"
	Payload    json.RawMessage `json:"payload"`
	PayloadRaw []byte          `json:"-"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// WebhookEndpoint is a tenant-configured delivery target.
type WebhookEndpoint struct {
	ID                  string     `json:"id"`
	DomainID            string     `json:"domainId"`
	URL                 string     `json:"url"`
	Description         string     `json:"description,omitempty"`
	SecretEncrypted     []byte     `json:"-"` // Signing secret, encrypted at rest
	EventTypes          []string   `json:"eventTypes"` // Subscribed types, or ["*"]
	IsActive            bool       `json:"isActive"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// SubscribesTo reports whether the endpoint wants events of the given type.
func (e WebhookEndpoint) SubscribesTo(eventType string) bool {
	for _, t := range e.EventTypes {
		if t == EventTypeWildcard || t == eventType {
			return true
		}
	}
	return false
}

// WebhookDelivery tracks all attempts to deliver one event to one endpoint.
//
// Lifecycle: born pending at fan-out, claimed into in_progress by exactly one
// worker, then resolved to succeeded, back to pending (retry scheduled), or
// abandoned. Stale in_progress rows are swept back to pending. Terminal rows
// never change again.
type WebhookDelivery struct {
	ID                 string         `json:"id"`
	EventID            string         `json:"eventId"`
	EndpointID         string         `json:"endpointId"`
	Status             DeliveryStatus `json:"status"`
	AttemptCount       int            `json:"attemptCount"`
	NextAttemptAt      time.Time      `json:"nextAttemptAt"` // Meaningful only while pending
	LockedAt           *time.Time     `json:"lockedAt,omitempty"` // Non-nil iff in_progress
	LastResponseStatus int            `json:"lastResponseStatus,omitempty"`
	LastResponseBody   string         `json:"lastResponseBody,omitempty"` // Capped at config limit
	LastError          string         `json:"lastError,omitempty"`
	CompletedAt        *time.Time     `json:"completedAt,omitempty"` // Set only for terminal rows
	CreatedAt          time.Time      `json:"createdAt"`
}

// ClaimedDelivery is a delivery joined with the endpoint and event fields a
// worker needs to execute it, returned by ClaimPendingBatch.
type ClaimedDelivery struct {
	Delivery WebhookDelivery

	EndpointURL     string
	SecretEncrypted []byte

	EventType      string
	PayloadRaw     []byte
	EventCreatedAt time.Time
}

// AttemptOutcome carries the observable result of one delivery attempt into
// the store's per-row update operations.
type AttemptOutcome struct {
	ResponseStatus int    // 0 when no HTTP response was received
	ResponseBody   string // Already truncated by the dispatcher
	Error          string // Empty on success
}
