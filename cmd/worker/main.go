package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/AuthPort/server/internal/circuitbreaker"
	"github.com/AuthPort/server/internal/config"
	"github.com/AuthPort/server/internal/dbpool"
	"github.com/AuthPort/server/internal/httpserver"
	"github.com/AuthPort/server/internal/lifecycle"
	"github.com/AuthPort/server/internal/logger"
	"github.com/AuthPort/server/internal/metrics"
	"github.com/AuthPort/server/internal/storage"
	"github.com/AuthPort/server/internal/webhooks"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", os.Getenv("AUTHPORT_CONFIG"), "path to config yaml")
	flag.Parse()

	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger := logger.New(logger.Config{Level: "info", Format: "json", Service: "authport-webhooks"})
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "authport-webhooks",
		Version:     version,
		Environment: cfg.Logging.Environment,
	})

	appLogger.Info().
		Str("backend", cfg.Storage.Backend).
		Str("address", cfg.Server.Address).
		Msg("Starting webhook delivery engine")

	resources := lifecycle.NewManager(appLogger)
	m := metrics.New(nil)

	store, err := buildStore(cfg, resources)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	resources.Register("storage", store)

	cipher, err := buildCipher(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("Failed to initialize secret cipher")
	}

	breakers := circuitbreaker.NewManagerFromConfig(cfg.CircuitBreaker, func(endpointID string, from, to gobreaker.State) {
		appLogger.Warn().
			Str("endpoint_id", endpointID).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Endpoint circuit breaker state changed")
	})

	publisher := webhooks.NewPublisher(store, appLogger, m)

	dispatcher := webhooks.NewDispatcher(webhooks.DispatcherOptions{
		Store:          store,
		Config:         cfg.Dispatcher,
		WebhooksConfig: cfg.Webhooks,
		Cipher:         cipher,
		Breakers:       breakers,
		Logger:         appLogger,
		Metrics:        m,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher.Start(ctx)

	server := httpserver.New(cfg, store, publisher, cipher, appLogger)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		appLogger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-serverErr:
		appLogger.Error().Err(err).Msg("HTTP server failed")
	}

	// Stop accepting admin traffic first, then drain in-flight deliveries,
	// then release storage handles.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	dispatcher.Stop()
	cancel()

	if err := resources.Close(); err != nil {
		appLogger.Error().Err(err).Msg("Resource cleanup reported errors")
	}

	appLogger.Info().Msg("Shutdown complete")
}

// buildStore constructs the configured storage backend. Postgres goes through
// the shared pool so pool settings and metrics hooks apply uniformly.
func buildStore(cfg *config.Config, resources *lifecycle.Manager) (storage.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if cfg.Storage.Backend == "postgres" {
		pool, err := dbpool.NewSharedPool(cfg.Storage.PostgresURL, cfg.Storage.PostgresPool)
		if err != nil {
			return nil, err
		}
		resources.Register("postgres-pool", pool)
		return storage.NewStoreWithDB(ctx, cfg.Storage, pool.DB())
	}

	return storage.NewStore(ctx, cfg.Storage)
}

// buildCipher selects the secret cipher for endpoint signing secrets at rest.
func buildCipher(cfg *config.Config, appLogger zerolog.Logger) (webhooks.SecretCipher, error) {
	if cfg.Webhooks.SecretKey == "" {
		appLogger.Warn().Msg("No webhook secret key configured; endpoint secrets are stored unencrypted")
		return webhooks.PlaintextCipher{}, nil
	}
	return webhooks.NewAESCipher(cfg.Webhooks.SecretKey)
}
