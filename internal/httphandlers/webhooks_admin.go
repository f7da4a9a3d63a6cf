package httphandlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/AuthPort/server/internal/errors"
	"github.com/AuthPort/server/internal/logger"
	"github.com/AuthPort/server/internal/storage"
	"github.com/AuthPort/server/internal/tenant"
	"github.com/AuthPort/server/internal/webhooks"
	"github.com/go-chi/chi/v5"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log error but can't change response at this point
		return
	}
}

// WebhooksAdminHandler handles endpoint registry, event publication, and
// delivery queue management.
type WebhooksAdminHandler struct {
	store     storage.Store
	publisher *webhooks.Publisher
	cipher    webhooks.SecretCipher
}

// NewWebhooksAdminHandler creates a new webhooks admin handler.
func NewWebhooksAdminHandler(store storage.Store, publisher *webhooks.Publisher, cipher webhooks.SecretCipher) *WebhooksAdminHandler {
	return &WebhooksAdminHandler{
		store:     store,
		publisher: publisher,
		cipher:    cipher,
	}
}

// Routes mounts the admin API on a chi router.
func (h *WebhooksAdminHandler) Routes(r chi.Router) {
	r.Post("/endpoints", h.CreateEndpoint)
	r.Get("/endpoints", h.ListEndpoints)
	r.Get("/endpoints/{id}", h.GetEndpoint)
	r.Put("/endpoints/{id}", h.UpdateEndpoint)
	r.Post("/endpoints/{id}/secret", h.RotateEndpointSecret)
	r.Delete("/endpoints/{id}", h.DeleteEndpoint)
	r.Get("/endpoints/{id}/deliveries", h.ListEndpointDeliveries)

	r.Post("/events", h.PublishEvent)
	r.Get("/events/{id}", h.GetEvent)
	r.Get("/events/{id}/deliveries", h.ListEventDeliveries)

	r.Get("/deliveries", h.ListDeliveries)
	r.Get("/deliveries/{id}", h.GetDelivery)
	r.Post("/deliveries/{id}/retry", h.RetryDelivery)
}

type endpointRequest struct {
	URL         string   `json:"url"`
	Description string   `json:"description"`
	EventTypes  []string `json:"eventTypes"`
	IsActive    *bool    `json:"isActive"`
}

// CreateEndpoint registers a delivery target and returns its signing secret.
// The plaintext secret appears in this response only; afterwards it exists
// solely encrypted at rest.
// POST /admin/endpoints
func (h *WebhooksAdminHandler) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteSimpleError(w, errors.ErrCodeInvalidField, "Invalid JSON body")
		return
	}
	if req.URL == "" {
		errors.WriteSimpleError(w, errors.ErrCodeMissingField, "url is required")
		return
	}
	if err := validateEndpointURL(req.URL); err != nil {
		errors.WriteSimpleError(w, errors.ErrCodeInvalidURL, err.Error())
		return
	}
	if len(req.EventTypes) == 0 {
		errors.WriteSimpleError(w, errors.ErrCodeMissingField, "eventTypes is required")
		return
	}

	secret := generateSecret()
	secretEncrypted, err := h.cipher.Encrypt([]byte(secret))
	if err != nil {
		errors.WriteSimpleError(w, errors.ErrCodeInternalError, "Failed to encrypt signing secret")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	endpoint, err := h.store.CreateEndpoint(ctx, storage.WebhookEndpoint{
		DomainID:        tenant.FromContext(ctx),
		URL:             req.URL,
		Description:     req.Description,
		SecretEncrypted: secretEncrypted,
		EventTypes:      req.EventTypes,
		IsActive:        active,
	})
	if err != nil {
		errors.WriteErrorWithDetail(w, errors.ErrCodeDatabaseError, "Failed to create endpoint", "error", err.Error())
		return
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("endpoint_id", endpoint.ID).
		Str("url", endpoint.URL).
		Msg("Webhook endpoint created")

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"endpoint": endpoint,
		"secret":   secret,
	})
}

// ListEndpoints lists the tenant's endpoints.
// GET /admin/endpoints
func (h *WebhooksAdminHandler) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	endpoints, err := h.store.ListEndpoints(ctx, tenant.FromContext(ctx))
	if err != nil {
		errors.WriteErrorWithDetail(w, errors.ErrCodeDatabaseError, "Failed to list endpoints", "error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"endpoints": endpoints,
		"count":     len(endpoints),
	})
}

// GetEndpoint retrieves a specific endpoint by ID.
// GET /admin/endpoints/{id}
func (h *WebhooksAdminHandler) GetEndpoint(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := h.loadEndpoint(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, endpoint)
}

// UpdateEndpoint updates the tenant-configurable fields of an endpoint.
// PUT /admin/endpoints/{id}
func (h *WebhooksAdminHandler) UpdateEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint, ok := h.loadEndpoint(w, r)
	if !ok {
		return
	}

	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteSimpleError(w, errors.ErrCodeInvalidField, "Invalid JSON body")
		return
	}

	if req.URL != "" {
		if err := validateEndpointURL(req.URL); err != nil {
			errors.WriteSimpleError(w, errors.ErrCodeInvalidURL, err.Error())
			return
		}
		endpoint.URL = req.URL
	}
	if req.Description != "" {
		endpoint.Description = req.Description
	}
	if len(req.EventTypes) > 0 {
		endpoint.EventTypes = req.EventTypes
	}
	if req.IsActive != nil {
		endpoint.IsActive = *req.IsActive
	}

	if err := h.store.UpdateEndpoint(ctx, endpoint); err != nil {
		errors.WriteErrorWithDetail(w, errors.ErrCodeDatabaseError, "Failed to update endpoint", "error", err.Error())
		return
	}

	updated, err := h.store.GetEndpoint(ctx, endpoint.ID)
	if err != nil {
		errors.WriteErrorWithDetail(w, errors.ErrCodeDatabaseError, "Failed to reload endpoint", "error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// RotateEndpointSecret replaces the endpoint's signing secret and returns the
// new plaintext secret once.
// POST /admin/endpoints/{id}/secret
func (h *WebhooksAdminHandler) RotateEndpointSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint, ok := h.loadEndpoint(w, r)
	if !ok {
		return
	}

	secret := generateSecret()
	secretEncrypted, err := h.cipher.Encrypt([]byte(secret))
	if err != nil {
		errors.WriteSimpleError(w, errors.ErrCodeInternalError, "Failed to encrypt signing secret")
		return
	}

	if err := h.store.UpdateEndpointSecret(ctx, endpoint.ID, secretEncrypted); err != nil {
		errors.WriteErrorWithDetail(w, errors.ErrCodeDatabaseError, "Failed to rotate secret", "error", err.Error())
		return
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("endpoint_id", endpoint.ID).
		Str("secret", logger.RedactSecret(secret)).
		Msg("Webhook endpoint secret rotated")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"endpointId": endpoint.ID,
		"secret":     secret,
	})
}

// DeleteEndpoint removes an endpoint and its deliveries.
// DELETE /admin/endpoints/{id}
func (h *WebhooksAdminHandler) DeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint, ok := h.loadEndpoint(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteEndpoint(ctx, endpoint.ID); err != nil {
		errors.WriteErrorWithDetail(w, errors.ErrCodeDatabaseError, "Failed to delete endpoint", "error", err.Error())
		return
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("endpoint_id", endpoint.ID).
		Msg("Webhook endpoint deleted")

	w.WriteHeader(http.StatusNoContent)
}

// ListEndpointDeliveries lists deliveries targeting one endpoint.
// GET /admin/endpoints/{id}/deliveries
func (h *WebhooksAdminHandler) ListEndpointDeliveries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint, ok := h.loadEndpoint(w, r)
	if !ok {
		return
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	deliveries, err := h.store.ListDeliveriesByEndpoint(ctx, endpoint.ID, limit)
	if err != nil {
		errors.WriteErrorWithDetail(w, errors.ErrCodeDatabaseError, "Failed to list deliveries", "error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deliveries": deliveries,
		"count":      len(deliveries),
	})
}

type publishEventRequest struct {
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
}

// PublishEvent records an event and fans it out to subscribed endpoints.
// POST /admin/events
func (h *WebhooksAdminHandler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req publishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteSimpleError(w, errors.ErrCodeInvalidField, "Invalid JSON body")
		return
	}
	if req.EventType == "" {
		errors.WriteSimpleError(w, errors.ErrCodeMissingField, "eventType is required")
		return
	}
	if len(req.Payload) == 0 {
		errors.WriteSimpleError(w, errors.ErrCodeMissingField, "payload is required")
		return
	}

	event, err := h.publisher.Publish(ctx, tenant.FromContext(ctx), req.EventType, req.Payload)
	if err != nil {
		errors.WriteErrorWithDetail(w, errors.ErrCodeInternalError, "Failed to publish event", "error", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, event)
}

// GetEvent retrieves an event by ID.
// GET /admin/events/{id}
func (h *WebhooksAdminHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "id")

	event, err := h.store.GetEvent(ctx, eventID)
	if err != nil {
		if err == storage.ErrNotFound {
			errors.WriteSimpleError(w, errors.ErrCodeEventNotFound, "Event not found")
			return
		}
		errors.WriteErrorWithDetail(w, errors.ErrCodeDatabaseError, "Failed to get event", "error", err.Error())
		return
	}
	if event.DomainID != tenant.FromContext(ctx) {
		errors.WriteSimpleError(w, errors.ErrCodeEventNotFound, "Event not found")
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// ListEventDeliveries lists the deliveries created from one event.
// GET /admin/events/{id}/deliveries
func (h *WebhooksAdminHandler) ListEventDeliveries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "id")

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	deliveries, err := h.store.ListDeliveriesByEvent(ctx, eventID, limit)
	if err != nil {
		errors.WriteErrorWithDetail(w, errors.ErrCodeDatabaseError, "Failed to list deliveries", "error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deliveries": deliveries,
		"count":      len(deliveries),
	})
}

// ListDeliveries returns deliveries with optional status filter.
// GET /admin/deliveries?status=pending&limit=100
func (h *WebhooksAdminHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var status storage.DeliveryStatus
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status = storage.DeliveryStatus(statusStr)
		if status != storage.DeliveryStatusPending &&
			status != storage.DeliveryStatusInProgress &&
			status != storage.DeliveryStatusSucceeded &&
			status != storage.DeliveryStatusAbandoned {
			errors.WriteSimpleError(w, errors.ErrCodeInvalidStatus, "Invalid status parameter. Must be: pending, in_progress, succeeded, or abandoned")
			return
		}
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	deliveries, err := h.store.ListDeliveries(ctx, status, limit)
	if err != nil {
		errors.WriteErrorWithDetail(w, errors.ErrCodeDatabaseError, "Failed to list deliveries", "error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deliveries": deliveries,
		"count":      len(deliveries),
	})
}

// GetDelivery retrieves a specific delivery by ID.
// GET /admin/deliveries/{id}
func (h *WebhooksAdminHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deliveryID := chi.URLParam(r, "id")

	delivery, err := h.store.GetDelivery(ctx, deliveryID)
	if err != nil {
		if err == storage.ErrNotFound {
			errors.WriteSimpleError(w, errors.ErrCodeDeliveryNotFound, "Delivery not found")
			return
		}
		errors.WriteErrorWithDetail(w, errors.ErrCodeDatabaseError, "Failed to get delivery", "error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, delivery)
}

// RetryDelivery resets an abandoned delivery to pending for manual retry.
// POST /admin/deliveries/{id}/retry
func (h *WebhooksAdminHandler) RetryDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deliveryID := chi.URLParam(r, "id")

	if err := h.store.RetryDelivery(ctx, deliveryID); err != nil {
		if err == storage.ErrNotFound {
			errors.WriteSimpleError(w, errors.ErrCodeDeliveryNotFound, "Delivery not found")
			return
		}
		errors.WriteErrorWithDetail(w, errors.ErrCodeDeliveryTerminal, "Only abandoned deliveries can be retried", "error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Delivery queued for retry",
		"deliveryId": deliveryID,
	})
}

// loadEndpoint fetches the endpoint named in the URL, scoped to the tenant.
func (h *WebhooksAdminHandler) loadEndpoint(w http.ResponseWriter, r *http.Request) (storage.WebhookEndpoint, bool) {
	ctx := r.Context()
	endpointID := chi.URLParam(r, "id")

	endpoint, err := h.store.GetEndpoint(ctx, endpointID)
	if err != nil {
		if err == storage.ErrNotFound {
			errors.WriteSimpleError(w, errors.ErrCodeEndpointNotFound, "Endpoint not found")
			return storage.WebhookEndpoint{}, false
		}
		errors.WriteErrorWithDetail(w, errors.ErrCodeDatabaseError, "Failed to get endpoint", "error", err.Error())
		return storage.WebhookEndpoint{}, false
	}
	if endpoint.DomainID != tenant.FromContext(ctx) {
		errors.WriteSimpleError(w, errors.ErrCodeEndpointNotFound, "Endpoint not found")
		return storage.WebhookEndpoint{}, false
	}
	return endpoint, true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 1000 {
			errors.WriteSimpleError(w, errors.ErrCodeInvalidLimit, "Invalid limit parameter. Must be between 1 and 1000")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

// validateEndpointURL checks the URL shape at registration time. Address
// checks happen per attempt against fresh DNS, not here.
func validateEndpointURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errInvalidScheme
	}
	if parsed.Hostname() == "" {
		return errMissingHost
	}
	return nil
}

var (
	errInvalidScheme = urlError("url scheme must be http or https")
	errMissingHost   = urlError("url must include a host")
)

type urlError string

func (e urlError) Error() string { return string(e) }

// generateSecret produces a new whsec_-prefixed endpoint signing secret.
func generateSecret() string {
	buf := make([]byte, 24)
	rand.Read(buf)
	return "whsec_" + hex.EncodeToString(buf)
}
