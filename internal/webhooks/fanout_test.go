package webhooks

import (
	"context"
	"testing"

	"github.com/AuthPort/server/internal/storage"
	"github.com/rs/zerolog"
)

func TestPublishFansOutToSubscribers(t *testing.T) {
	store := storage.NewMemoryStore()
	publisher := NewPublisher(store, zerolog.Nop(), nil)
	ctx := context.Background()

	create := func(eventTypes []string, active bool) storage.WebhookEndpoint {
		endpoint, err := store.CreateEndpoint(ctx, storage.WebhookEndpoint{
			DomainID:   "dom_a",
			URL:        "https://example.com/hooks",
			EventTypes: eventTypes,
			IsActive:   active,
		})
		if err != nil {
			t.Fatalf("CreateEndpoint failed: %v", err)
		}
		return endpoint
	}

	subscribed := create([]string{"user.created"}, true)
	wildcard := create([]string{"*"}, true)
	create([]string{"session.revoked"}, true) // not subscribed
	create([]string{"user.created"}, false)   // inactive

	event, err := publisher.Publish(ctx, "dom_a", "user.created", []byte(`{"id":"usr_1"}`))
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if event.ID == "" {
		t.Fatal("expected event ID")
	}

	deliveries, err := store.ListDeliveriesByEvent(ctx, event.ID, 10)
	if err != nil {
		t.Fatalf("ListDeliveriesByEvent failed: %v", err)
	}
	if len(deliveries) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(deliveries))
	}

	targets := map[string]bool{}
	for _, d := range deliveries {
		targets[d.EndpointID] = true
		if d.Status != storage.DeliveryStatusPending {
			t.Errorf("expected pending delivery, got %s", d.Status)
		}
	}
	if !targets[subscribed.ID] || !targets[wildcard.ID] {
		t.Errorf("expected deliveries to %s and %s, got %v", subscribed.ID, wildcard.ID, targets)
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	store := storage.NewMemoryStore()
	publisher := NewPublisher(store, zerolog.Nop(), nil)
	ctx := context.Background()

	event, err := publisher.Publish(ctx, "dom_a", "user.created", []byte(`{}`))
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// The event is still recorded.
	if _, err := store.GetEvent(ctx, event.ID); err != nil {
		t.Errorf("GetEvent failed: %v", err)
	}

	deliveries, err := store.ListDeliveriesByEvent(ctx, event.ID, 10)
	if err != nil {
		t.Fatalf("ListDeliveriesByEvent failed: %v", err)
	}
	if len(deliveries) != 0 {
		t.Errorf("expected no deliveries, got %d", len(deliveries))
	}
}

func TestPublishRejectsInvalidJSON(t *testing.T) {
	store := storage.NewMemoryStore()
	publisher := NewPublisher(store, zerolog.Nop(), nil)

	if _, err := publisher.Publish(context.Background(), "dom_a", "user.created", []byte("not json")); err == nil {
		t.Error("expected error for invalid JSON payload")
	}
}
