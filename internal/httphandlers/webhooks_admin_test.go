package httphandlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AuthPort/server/internal/storage"
	"github.com/AuthPort/server/internal/tenant"
	"github.com/AuthPort/server/internal/webhooks"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func newTestRouter(store storage.Store) chi.Router {
	publisher := webhooks.NewPublisher(store, zerolog.Nop(), nil)
	handler := NewWebhooksAdminHandler(store, publisher, webhooks.PlaintextCipher{})

	router := chi.NewRouter()
	router.Use(tenant.Extraction)
	router.Route("/admin", handler.Routes)
	return router
}

func doRequest(t *testing.T, router chi.Router, method, path, domainID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if domainID != "" {
		req.Header.Set("X-Domain-ID", domainID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateEndpointReturnsSecretOnce(t *testing.T) {
	store := storage.NewMemoryStore()
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodPost, "/admin/endpoints", "dom_a", map[string]interface{}{
		"url":        "https://example.com/hooks",
		"eventTypes": []string{"user.created"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Endpoint storage.WebhookEndpoint `json:"endpoint"`
		Secret   string                  `json:"secret"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.Secret, "whsec_") {
		t.Errorf("expected whsec_ secret, got %q", resp.Secret)
	}
	if resp.Endpoint.DomainID != "dom_a" {
		t.Errorf("expected domain dom_a, got %q", resp.Endpoint.DomainID)
	}
	if !resp.Endpoint.IsActive {
		t.Error("expected endpoint active by default")
	}

	// The secret never appears in subsequent reads.
	rec = doRequest(t, router, http.MethodGet, "/admin/endpoints/"+resp.Endpoint.ID, "dom_a", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), resp.Secret) {
		t.Error("secret leaked in endpoint read")
	}
}

func TestCreateEndpointValidation(t *testing.T) {
	store := storage.NewMemoryStore()
	router := newTestRouter(store)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing url", map[string]interface{}{"eventTypes": []string{"*"}}},
		{"missing event types", map[string]interface{}{"url": "https://example.com"}},
		{"bad scheme", map[string]interface{}{"url": "ftp://example.com", "eventTypes": []string{"*"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/admin/endpoints", "dom_a", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestEndpointTenantIsolation(t *testing.T) {
	store := storage.NewMemoryStore()
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodPost, "/admin/endpoints", "dom_a", map[string]interface{}{
		"url":        "https://example.com/hooks",
		"eventTypes": []string{"*"},
	})
	var resp struct {
		Endpoint storage.WebhookEndpoint `json:"endpoint"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	rec = doRequest(t, router, http.MethodGet, "/admin/endpoints/"+resp.Endpoint.ID, "dom_b", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 across tenants, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/admin/endpoints", "dom_b", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listResp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if listResp.Count != 0 {
		t.Errorf("expected 0 endpoints for dom_b, got %d", listResp.Count)
	}
}

func TestRotateEndpointSecret(t *testing.T) {
	store := storage.NewMemoryStore()
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodPost, "/admin/endpoints", "dom_a", map[string]interface{}{
		"url":        "https://example.com/hooks",
		"eventTypes": []string{"*"},
	})
	var created struct {
		Endpoint storage.WebhookEndpoint `json:"endpoint"`
		Secret   string                  `json:"secret"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	rec = doRequest(t, router, http.MethodPost, "/admin/endpoints/"+created.Endpoint.ID+"/secret", "dom_a", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var rotated struct {
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &rotated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rotated.Secret == created.Secret {
		t.Error("expected a new secret after rotation")
	}
}

func TestPublishEventCreatesDeliveries(t *testing.T) {
	store := storage.NewMemoryStore()
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodPost, "/admin/endpoints", "dom_a", map[string]interface{}{
		"url":        "https://example.com/hooks",
		"eventTypes": []string{"user.created"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/admin/events", "dom_a", map[string]interface{}{
		"eventType": "user.created",
		"payload":   map[string]string{"id": "usr_1"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var event storage.WebhookEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &event); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	rec = doRequest(t, router, http.MethodGet, "/admin/events/"+event.ID+"/deliveries", "dom_a", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listResp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if listResp.Count != 1 {
		t.Errorf("expected 1 delivery, got %d", listResp.Count)
	}
}

func TestPublishEventValidation(t *testing.T) {
	store := storage.NewMemoryStore()
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodPost, "/admin/events", "dom_a", map[string]interface{}{
		"payload": map[string]string{"id": "usr_1"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing eventType, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/admin/events", "dom_a", map[string]interface{}{
		"eventType": "user.created",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing payload, got %d", rec.Code)
	}
}

func TestListDeliveriesStatusFilter(t *testing.T) {
	store := storage.NewMemoryStore()
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodGet, "/admin/deliveries?status=bogus", "dom_a", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid status, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/admin/deliveries?limit=9999", "dom_a", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid limit, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/admin/deliveries?status=pending", "dom_a", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRetryDelivery(t *testing.T) {
	store := storage.NewMemoryStore()
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodPost, "/admin/deliveries/del_missing/retry", "dom_a", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown delivery, got %d", rec.Code)
	}

	// Seed an abandoned delivery directly.
	ctx := tenant.WithDomain(httptest.NewRequest("GET", "/", nil).Context(), "dom_a")
	event, err := store.CreateEvent(ctx, storage.WebhookEvent{DomainID: "dom_a", EventType: "user.created", PayloadRaw: []byte(`{}`)})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	endpoint, err := store.CreateEndpoint(ctx, storage.WebhookEndpoint{DomainID: "dom_a", URL: "https://example.com", EventTypes: []string{"*"}, IsActive: true})
	if err != nil {
		t.Fatalf("CreateEndpoint failed: %v", err)
	}
	delivery, err := store.CreateDelivery(ctx, event.ID, endpoint.ID)
	if err != nil {
		t.Fatalf("CreateDelivery failed: %v", err)
	}

	// Pending deliveries cannot be manually retried.
	rec = doRequest(t, router, http.MethodPost, fmt.Sprintf("/admin/deliveries/%s/retry", delivery.ID), "dom_a", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for non-abandoned delivery, got %d", rec.Code)
	}

	if _, err := store.ClaimPendingBatch(ctx, 1); err != nil {
		t.Fatalf("ClaimPendingBatch failed: %v", err)
	}
	if err := store.MarkDeliveryAbandoned(ctx, delivery.ID, storage.AttemptOutcome{ResponseStatus: 410}); err != nil {
		t.Fatalf("MarkDeliveryAbandoned failed: %v", err)
	}

	rec = doRequest(t, router, http.MethodPost, fmt.Sprintf("/admin/deliveries/%s/retry", delivery.ID), "dom_a", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got, err := store.GetDelivery(ctx, delivery.ID)
	if err != nil {
		t.Fatalf("GetDelivery failed: %v", err)
	}
	if got.Status != storage.DeliveryStatusPending {
		t.Errorf("expected pending after retry, got %s", got.Status)
	}
}
