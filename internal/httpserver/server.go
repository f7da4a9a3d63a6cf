package httpserver

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/AuthPort/server/internal/config"
	"github.com/AuthPort/server/internal/errors"
	"github.com/AuthPort/server/internal/httphandlers"
	"github.com/AuthPort/server/internal/logger"
	"github.com/AuthPort/server/internal/storage"
	"github.com/AuthPort/server/internal/tenant"
	"github.com/AuthPort/server/internal/webhooks"
)

var serverStartTime = time.Now()

// Server exposes the admin API, health, and metrics endpoints alongside the
// dispatcher. Delivery itself never goes through this server; it only manages
// and observes the queue.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	httpServer *http.Server
}

// New builds the HTTP server with configured router.
func New(cfg *config.Config, store storage.Store, publisher *webhooks.Publisher, cipher webhooks.SecretCipher, appLogger zerolog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		cfg:    cfg,
		logger: appLogger,
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}

	ConfigureRouter(router, cfg, store, publisher, cipher, appLogger)
	return s
}

// ConfigureRouter attaches the admin routes to an existing router.
func ConfigureRouter(router chi.Router, cfg *config.Config, store storage.Store, publisher *webhooks.Publisher, cipher webhooks.SecretCipher, appLogger zerolog.Logger) {
	if router == nil {
		return
	}

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	// Security headers first so every response carries them
	router.Use(securityHeadersMiddleware)

	// Structured logging before RequestID for context propagation
	router.Use(logger.Middleware(appLogger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Use(tenant.Extraction)

	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMinute > 0 {
		router.Use(httprate.LimitByIP(cfg.RateLimit.RequestsPerMinute, time.Minute))
	}

	adminHandler := httphandlers.NewWebhooksAdminHandler(store, publisher, cipher)

	// Lightweight endpoints with a short timeout
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/health", healthHandler(store))
		r.With(adminAuth(cfg.Server.AdminAPIKey)).Handle("/metrics", promhttp.Handler())
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(adminAuth(cfg.Server.AdminAPIKey))
		r.Route("/admin", adminHandler.Routes)
	})
}

// healthHandler reports process and storage health.
func healthHandler(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		depth, err := store.CountDueDeliveries(r.Context())
		status := "ok"
		code := http.StatusOK
		if err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		writeHealthBody(w, status, depth)
	}
}

// adminAuth guards a route group with a static API key compared in constant
// time. An empty configured key disables the check (development only).
func adminAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				errors.WriteSimpleError(w, errors.ErrCodeUnauthorized, "Invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
