package webhooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/AuthPort/server/internal/circuitbreaker"
	"github.com/AuthPort/server/internal/config"
	"github.com/AuthPort/server/internal/httputil"
	"github.com/AuthPort/server/internal/metrics"
	"github.com/AuthPort/server/internal/storage"
	"github.com/rs/zerolog"
)

// Abandonment reasons recorded in metrics and logs.
const (
	ReasonMaxAttempts        = "max_attempts"
	ReasonTerminalStatus     = "terminal_status"
	ReasonBlockedDestination = "blocked_destination"
	ReasonSecretUnavailable  = "secret_unavailable"
)

// Dispatcher drains the delivery queue.
//
// Two loops run concurrently: the poll loop claims due deliveries and attempts
// them on a bounded worker pool, and the sweep loop returns deliveries
// stranded in_progress by a crashed worker to the queue. Any number of
// dispatcher processes can share one store; the claim protocol keeps them from
// attempting the same delivery.
type Dispatcher struct {
	store      storage.Store
	cfg        config.DispatcherConfig
	webhookCfg config.WebhooksConfig
	cipher     SecretCipher
	checker    *DestinationChecker
	breakers   *circuitbreaker.Manager
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	sem        chan struct{}
	stopChan   chan struct{}
	doneChan   chan struct{}
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Store          storage.Store
	Config         config.DispatcherConfig
	WebhooksConfig config.WebhooksConfig
	Cipher         SecretCipher
	Checker        *DestinationChecker
	Breakers       *circuitbreaker.Manager
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
	HTTPClient     *http.Client // Optional; a redirect-refusing client is built from the retry timeout when nil
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	cfg := opts.Config
	if cfg.PollInterval.Duration <= 0 {
		cfg.PollInterval.Duration = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.SweepInterval.Duration <= 0 {
		cfg.SweepInterval.Duration = 60 * time.Second
	}
	if cfg.StaleThreshold.Duration <= 0 {
		cfg.StaleThreshold.Duration = 5 * time.Minute
	}
	if cfg.Retry.Timeout.Duration <= 0 {
		cfg.Retry.Timeout.Duration = 10 * time.Second
	}

	webhookCfg := opts.WebhooksConfig
	if webhookCfg.MaxResponseBytes <= 0 {
		webhookCfg.MaxResponseBytes = 1024
	}

	cipher := opts.Cipher
	if cipher == nil {
		cipher = PlaintextCipher{}
	}
	checker := opts.Checker
	if checker == nil {
		checker = NewDestinationChecker(webhookCfg.AllowPrivateTargets)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = httputil.NewDeliveryClient(cfg.Retry.Timeout.Duration)
	}

	return &Dispatcher{
		store:      opts.Store,
		cfg:        cfg,
		webhookCfg: webhookCfg,
		cipher:     cipher,
		checker:    checker,
		breakers:   opts.Breakers,
		httpClient: httpClient,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		sem:        make(chan struct{}, cfg.Concurrency),
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start begins the poll and sweep loops.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

// Stop gracefully stops the dispatcher, waiting for in-flight attempts.
func (d *Dispatcher) Stop() {
	close(d.stopChan)
	<-d.doneChan
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.doneChan)

	pollTicker := time.NewTicker(d.cfg.PollInterval.Duration)
	defer pollTicker.Stop()
	sweepTicker := time.NewTicker(d.cfg.SweepInterval.Duration)
	defer sweepTicker.Stop()

	d.logger.Info().
		Dur("pollInterval", d.cfg.PollInterval.Duration).
		Int("batchSize", d.cfg.BatchSize).
		Int("concurrency", d.cfg.Concurrency).
		Msg("webhook dispatcher started")

	for {
		select {
		case <-d.stopChan:
			d.logger.Info().Msg("webhook dispatcher stopping")
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			d.pollOnce(ctx)
		case <-sweepTicker.C:
			d.sweepOnce(ctx)
		}
	}
}

// pollOnce claims a batch of due deliveries and attempts them concurrently.
func (d *Dispatcher) pollOnce(ctx context.Context) {
	claimed, err := d.store.ClaimPendingBatch(ctx, d.cfg.BatchSize)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to claim pending deliveries")
		return
	}
	if d.metrics != nil {
		d.metrics.ClaimBatchSize.Observe(float64(len(claimed)))
		if depth, err := d.store.CountDueDeliveries(ctx); err == nil {
			d.metrics.QueueDepth.Set(float64(depth))
		}
	}
	if len(claimed) == 0 {
		return
	}

	d.logger.Debug().Int("count", len(claimed)).Msg("processing claimed deliveries")

	var wg sync.WaitGroup
	for _, delivery := range claimed {
		delivery := delivery
		d.sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-d.sem }()
			defer func() {
				// A panicking attempt must not take down the dispatcher.
				// The delivery stays in_progress and the stale sweep
				// returns it to the queue.
				if r := recover(); r != nil {
					d.logger.Error().
						Interface("panic", r).
						Str("deliveryID", delivery.Delivery.ID).
						Msg("delivery attempt panicked")
				}
			}()
			d.attempt(ctx, delivery)
		}()
	}
	wg.Wait()
}

// sweepOnce rescues deliveries locked longer than the stale threshold.
func (d *Dispatcher) sweepOnce(ctx context.Context) {
	olderThan := time.Now().UTC().Add(-d.cfg.StaleThreshold.Duration)
	reclaimed, err := d.store.ReclaimStaleDeliveries(ctx, olderThan)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to reclaim stale deliveries")
		return
	}
	if reclaimed > 0 {
		if d.metrics != nil {
			d.metrics.StaleReclaimedTotal.Add(float64(reclaimed))
		}
		d.logger.Warn().Int64("count", reclaimed).Msg("reclaimed stale deliveries")
	}
}

// attempt performs one delivery attempt and resolves the claimed delivery.
func (d *Dispatcher) attempt(ctx context.Context, claimed storage.ClaimedDelivery) {
	delivery := claimed.Delivery
	attemptNumber := delivery.AttemptCount + 1
	start := time.Now()

	secret, err := d.cipher.Decrypt(claimed.SecretEncrypted)
	if err != nil {
		d.abandon(ctx, claimed, storage.AttemptOutcome{Error: "signing secret unavailable"}, ReasonSecretUnavailable)
		d.logger.Error().
			Err(err).
			Str("deliveryID", delivery.ID).
			Str("endpointID", delivery.EndpointID).
			Msg("failed to decrypt endpoint secret")
		return
	}

	if err := d.checker.Check(ctx, claimed.EndpointURL); err != nil {
		var blocked *ErrBlockedDestination
		if errors.As(err, &blocked) {
			if d.metrics != nil {
				d.metrics.SSRFBlockedTotal.Inc()
			}
			d.abandon(ctx, claimed, storage.AttemptOutcome{Error: err.Error()}, ReasonBlockedDestination)
			d.logger.Warn().
				Str("deliveryID", delivery.ID).
				Str("endpointID", delivery.EndpointID).
				Str("reason", blocked.Reason).
				Msg("delivery blocked by destination check")
			return
		}
		// Resolution failure is transient.
		d.resolveFailure(ctx, claimed, attemptNumber, storage.AttemptOutcome{Error: err.Error()}, VerdictRetry, time.Since(start))
		return
	}

	statusCode, body, transportErr := d.send(ctx, claimed, secret)
	duration := time.Since(start)

	outcome := storage.AttemptOutcome{
		ResponseStatus: statusCode,
		ResponseBody:   body,
	}
	if transportErr != nil {
		outcome.Error = transportErr.Error()
	}

	verdict := Classify(statusCode, transportErr)
	if verdict == VerdictSuccess {
		if err := d.store.MarkDeliverySucceeded(ctx, delivery.ID, outcome); err != nil {
			d.logger.Error().Err(err).Str("deliveryID", delivery.ID).Msg("failed to mark delivery succeeded")
		}
		if err := d.store.RecordEndpointSuccess(ctx, delivery.EndpointID, time.Now().UTC()); err != nil && !errors.Is(err, storage.ErrNotFound) {
			d.logger.Error().Err(err).Str("endpointID", delivery.EndpointID).Msg("failed to record endpoint success")
		}
		if d.metrics != nil {
			d.metrics.ObserveDelivery(claimed.EventType, "success", duration)
		}
		d.logger.Info().
			Str("deliveryID", delivery.ID).
			Str("eventType", claimed.EventType).
			Int("attempt", attemptNumber).
			Int("status", statusCode).
			Dur("duration", duration).
			Msg("webhook delivered")
		return
	}

	d.resolveFailure(ctx, claimed, attemptNumber, outcome, verdict, duration)
}

// resolveFailure schedules a retry or abandons the delivery.
func (d *Dispatcher) resolveFailure(ctx context.Context, claimed storage.ClaimedDelivery, attemptNumber int, outcome storage.AttemptOutcome, verdict Verdict, duration time.Duration) {
	delivery := claimed.Delivery

	if d.metrics != nil {
		d.metrics.ObserveDelivery(claimed.EventType, "failure", duration)
	}

	if verdict == VerdictTerminal {
		d.abandon(ctx, claimed, outcome, ReasonTerminalStatus)
		d.logger.Warn().
			Str("deliveryID", delivery.ID).
			Str("eventType", claimed.EventType).
			Int("status", outcome.ResponseStatus).
			Msg("webhook rejected with non-retryable status")
		return
	}

	if attemptNumber >= d.cfg.Retry.MaxAttempts {
		d.abandon(ctx, claimed, outcome, ReasonMaxAttempts)
		d.logger.Warn().
			Str("deliveryID", delivery.ID).
			Str("eventType", claimed.EventType).
			Int("attempts", attemptNumber).
			Str("lastError", outcome.Error).
			Msg("webhook abandoned after exhausting retries")
		return
	}

	nextAttemptAt := time.Now().UTC().Add(Backoff(d.cfg.Retry, attemptNumber))
	if err := d.store.MarkDeliveryRetrying(ctx, delivery.ID, outcome, nextAttemptAt); err != nil {
		d.logger.Error().Err(err).Str("deliveryID", delivery.ID).Msg("failed to mark delivery retrying")
		return
	}
	d.recordEndpointFailure(ctx, delivery.EndpointID)
	if d.metrics != nil {
		d.metrics.ObserveRetry(claimed.EventType)
	}
	d.logger.Warn().
		Str("deliveryID", delivery.ID).
		Str("eventType", claimed.EventType).
		Int("attempt", attemptNumber).
		Time("nextAttempt", nextAttemptAt).
		Str("lastError", outcome.Error).
		Msg("webhook delivery failed, scheduled for retry")
}

func (d *Dispatcher) abandon(ctx context.Context, claimed storage.ClaimedDelivery, outcome storage.AttemptOutcome, reason string) {
	if err := d.store.MarkDeliveryAbandoned(ctx, claimed.Delivery.ID, outcome); err != nil {
		d.logger.Error().Err(err).Str("deliveryID", claimed.Delivery.ID).Msg("failed to mark delivery abandoned")
		return
	}
	d.recordEndpointFailure(ctx, claimed.Delivery.EndpointID)
	if d.metrics != nil {
		d.metrics.ObserveAbandoned(reason)
	}
}

func (d *Dispatcher) recordEndpointFailure(ctx context.Context, endpointID string) {
	failures, err := d.store.RecordEndpointFailure(ctx, endpointID, time.Now().UTC(), d.webhookCfg.DisableAfterFailures)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			d.logger.Error().Err(err).Str("endpointID", endpointID).Msg("failed to record endpoint failure")
		}
		return
	}
	if d.webhookCfg.DisableAfterFailures > 0 && failures == d.webhookCfg.DisableAfterFailures {
		d.logger.Warn().
			Str("endpointID", endpointID).
			Int("consecutiveFailures", failures).
			Msg("endpoint deactivated after consecutive failures")
	}
}

// send performs the signed HTTP request. It returns the response status code,
// the capped response body, and any transport error. A non-2xx response is
// not a transport error.
func (d *Dispatcher) send(ctx context.Context, claimed storage.ClaimedDelivery, secret []byte) (int, string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.Retry.Timeout.Duration)
	defer cancel()

	doRequest := func() (interface{}, error) {
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, claimed.EndpointURL, bytes.NewReader(claimed.PayloadRaw))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		now := time.Now().UTC()
		signer := NewSigner(secret)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "AuthPort-Webhooks/1.0")
		req.Header.Set(HeaderSignature, signer.Sign(claimed.PayloadRaw, now))
		req.Header.Set(HeaderID, claimed.Delivery.ID)
		req.Header.Set(HeaderEvent, claimed.EventType)
		req.Header.Set(HeaderTimestamp, fmt.Sprintf("%d", now.Unix()))

		resp, err := d.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, int64(d.webhookCfg.MaxResponseBytes)))
		result := sendResult{statusCode: resp.StatusCode, body: string(body)}
		if resp.StatusCode >= 400 {
			// Report non-2xx as failure so the breaker counts it, while
			// keeping the response for classification.
			return result, fmt.Errorf("received status %d", resp.StatusCode)
		}
		return result, nil
	}

	var value interface{}
	var err error
	if d.breakers != nil {
		value, err = d.breakers.Execute(claimed.Delivery.EndpointID, doRequest)
		if circuitbreaker.IsOpen(err) {
			if d.metrics != nil {
				d.metrics.BreakerOpenTotal.WithLabelValues(claimed.Delivery.EndpointID).Inc()
			}
			return 0, "", fmt.Errorf("endpoint breaker open: %w", err)
		}
	} else {
		value, err = doRequest()
	}

	if result, ok := value.(sendResult); ok {
		return result.statusCode, result.body, nil
	}
	return 0, "", err
}

type sendResult struct {
	statusCode int
	body       string
}
