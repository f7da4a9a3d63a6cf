package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AuthPort/server/internal/config"
	"github.com/AuthPort/server/internal/storage"
	"github.com/AuthPort/server/internal/webhooks"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T, adminKey string) (chi.Router, storage.Store) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.AdminAPIKey = adminKey

	store := storage.NewMemoryStore()
	publisher := webhooks.NewPublisher(store, zerolog.Nop(), nil)

	router := chi.NewRouter()
	ConfigureRouter(router, cfg, store, publisher, webhooks.PlaintextCipher{}, zerolog.Nop())
	return router, store
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("expected status ok, got %q", body.Status)
	}
}

func TestAdminAuthRequired(t *testing.T) {
	router, _ := newTestServer(t, "test-admin-key")

	req := httptest.NewRequest(http.MethodGet, "/admin/deliveries", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/deliveries", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/deliveries", nil)
	req.Header.Set("X-API-Key", "test-admin-key")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with correct key, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsProtectedByAdminKey(t *testing.T) {
	router, _ := newTestServer(t, "test-admin-key")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-API-Key", "test-admin-key")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", rec.Code)
	}
}

func TestHealthOpenWithoutKey(t *testing.T) {
	router, _ := newTestServer(t, "test-admin-key")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected health open without key, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	router, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff header, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected DENY frame options, got %q", got)
	}
	if got := rec.Header().Get("X-Request-ID"); got == "" {
		t.Error("expected request ID header")
	}
}
