package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AuthPort/server/internal/config"
	"github.com/lib/pq"
	_ "github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL. Claim exclusivity comes from
// row-level locking with SKIP LOCKED, so concurrent workers on the same
// database never double-claim and never queue behind each other.
type PostgresStore struct {
	db                  *sql.DB
	ownsDB              bool   // Track if we created the DB connection (for Close())
	eventsTableName     string // Configurable table name (default: "webhook_events")
	endpointsTableName  string // Configurable table name (default: "webhook_endpoints")
	deliveriesTableName string // Configurable table name (default: "webhook_deliveries")
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(connectionString string, poolConfig config.PostgresPoolConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		// Close() error during initialization cleanup is not actionable and
		// would only obscure the original connection failure.
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if poolConfig.MaxOpenConns > 0 {
		db.SetMaxOpenConns(poolConfig.MaxOpenConns)
	}
	if poolConfig.MaxIdleConns > 0 {
		db.SetMaxIdleConns(poolConfig.MaxIdleConns)
	}
	if poolConfig.ConnMaxLifetime.Duration > 0 {
		db.SetConnMaxLifetime(poolConfig.ConnMaxLifetime.Duration)
	}
	if poolConfig.ConnMaxIdleTime.Duration > 0 {
		db.SetConnMaxIdleTime(poolConfig.ConnMaxIdleTime.Duration)
	}

	store := newPostgresStore(db, true)
	if err := store.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithDB creates a PostgreSQL-backed store using an existing connection pool.
// This allows sharing a single connection pool across multiple stores/repositories.
func NewPostgresStoreWithDB(db *sql.DB) (*PostgresStore, error) {
	store := newPostgresStore(db, false)
	if err := store.createTables(); err != nil {
		return nil, err
	}
	return store, nil
}

func newPostgresStore(db *sql.DB, ownsDB bool) *PostgresStore {
	return &PostgresStore{
		db:                  db,
		ownsDB:              ownsDB,
		eventsTableName:     "webhook_events",
		endpointsTableName:  "webhook_endpoints",
		deliveriesTableName: "webhook_deliveries",
	}
}

// WithTableNames sets custom table names and ensures they exist.
func (s *PostgresStore) WithTableNames(events, endpoints, deliveries string) *PostgresStore {
	if events != "" {
		s.eventsTableName = events
	}
	if endpoints != "" {
		s.endpointsTableName = endpoints
	}
	if deliveries != "" {
		s.deliveriesTableName = deliveries
	}

	// CREATE TABLE IF NOT EXISTS only creates missing tables.
	_ = s.createTables()

	return s
}

// createTables creates the necessary tables and indexes if they don't exist.
// Indexes support claim-by-status-and-due-time, lookup-by-event, and
// lookup-by-endpoint.
func (s *PostgresStore) createTables() error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			domain_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			payload_raw BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS %[2]s (
			id TEXT PRIMARY KEY,
			domain_id TEXT NOT NULL,
			url TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			secret_encrypted BYTEA NOT NULL,
			event_types TEXT[] NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			last_success_at TIMESTAMPTZ,
			last_failure_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS %[3]s (
			id TEXT PRIMARY KEY,
			webhook_event_id TEXT NOT NULL REFERENCES %[1]s(id),
			webhook_endpoint_id TEXT NOT NULL REFERENCES %[2]s(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			next_attempt_at TIMESTAMPTZ NOT NULL,
			locked_at TIMESTAMPTZ,
			last_response_status INTEGER NOT NULL DEFAULT 0,
			last_response_body TEXT NOT NULL DEFAULT '',
			last_error TEXT NOT NULL DEFAULT '',
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (webhook_event_id, webhook_endpoint_id)
		);

		CREATE INDEX IF NOT EXISTS idx_%[2]s_domain ON %[2]s (domain_id);
		CREATE INDEX IF NOT EXISTS idx_%[3]s_claim ON %[3]s (status, next_attempt_at);
		CREATE INDEX IF NOT EXISTS idx_%[3]s_event ON %[3]s (webhook_event_id);
		CREATE INDEX IF NOT EXISTS idx_%[3]s_endpoint ON %[3]s (webhook_endpoint_id);
	`, s.eventsTableName, s.endpointsTableName, s.deliveriesTableName)

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// CreateEvent appends an event to the log.
func (s *PostgresStore) CreateEvent(ctx context.Context, event WebhookEvent) (WebhookEvent, error) {
	if event.ID == "" {
		event.ID = generateEventID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, domain_id, event_type, payload, payload_raw, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.eventsTableName)

	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.DomainID, event.EventType, []byte(event.Payload), event.PayloadRaw, event.CreatedAt)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// GetEvent retrieves an event by ID.
func (s *PostgresStore) GetEvent(ctx context.Context, eventID string) (WebhookEvent, error) {
	query := fmt.Sprintf(`
		SELECT id, domain_id, event_type, payload, payload_raw, created_at
		FROM %s WHERE id = $1
	`, s.eventsTableName)

	var event WebhookEvent
	var payload []byte
	err := s.db.QueryRowContext(ctx, query, eventID).Scan(
		&event.ID, &event.DomainID, &event.EventType, &payload, &event.PayloadRaw, &event.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return WebhookEvent{}, ErrNotFound
		}
		return WebhookEvent{}, fmt.Errorf("query event: %w", err)
	}
	event.Payload = payload
	return event, nil
}

// CreateEndpoint registers a delivery target.
func (s *PostgresStore) CreateEndpoint(ctx context.Context, endpoint WebhookEndpoint) (WebhookEndpoint, error) {
	if endpoint.ID == "" {
		endpoint.ID = generateEndpointID()
	}
	now := time.Now().UTC()
	if endpoint.CreatedAt.IsZero() {
		endpoint.CreatedAt = now
	}
	endpoint.UpdatedAt = now

	query := fmt.Sprintf(`
		INSERT INTO %s (id, domain_id, url, description, secret_encrypted, event_types, is_active, consecutive_failures, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, s.endpointsTableName)

	_, err := s.db.ExecContext(ctx, query,
		endpoint.ID, endpoint.DomainID, endpoint.URL, endpoint.Description,
		endpoint.SecretEncrypted, pq.Array(endpoint.EventTypes), endpoint.IsActive,
		endpoint.ConsecutiveFailures, endpoint.CreatedAt, endpoint.UpdatedAt)
	if err != nil {
		return WebhookEndpoint{}, fmt.Errorf("insert endpoint: %w", err)
	}
	return endpoint, nil
}

const endpointColumns = "id, domain_id, url, description, secret_encrypted, event_types, is_active, consecutive_failures, last_success_at, last_failure_at, created_at, updated_at"

// GetEndpoint retrieves an endpoint by ID.
func (s *PostgresStore) GetEndpoint(ctx context.Context, endpointID string) (WebhookEndpoint, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, endpointColumns, s.endpointsTableName)

	endpoint, err := scanEndpoint(s.db.QueryRowContext(ctx, query, endpointID))
	if err != nil {
		if err == sql.ErrNoRows {
			return WebhookEndpoint{}, ErrNotFound
		}
		return WebhookEndpoint{}, fmt.Errorf("query endpoint: %w", err)
	}
	return endpoint, nil
}

// UpdateEndpoint replaces the tenant-configurable fields of an endpoint.
func (s *PostgresStore) UpdateEndpoint(ctx context.Context, endpoint WebhookEndpoint) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET url = $1, description = $2, event_types = $3, is_active = $4, updated_at = $5
		WHERE id = $6
	`, s.endpointsTableName)

	result, err := s.db.ExecContext(ctx, query,
		endpoint.URL, endpoint.Description, pq.Array(endpoint.EventTypes),
		endpoint.IsActive, time.Now().UTC(), endpoint.ID)
	if err != nil {
		return fmt.Errorf("update endpoint: %w", err)
	}
	return requireRow(result)
}

// UpdateEndpointSecret rotates the encrypted signing secret.
func (s *PostgresStore) UpdateEndpointSecret(ctx context.Context, endpointID string, secretEncrypted []byte) error {
	query := fmt.Sprintf(`
		UPDATE %s SET secret_encrypted = $1, updated_at = $2 WHERE id = $3
	`, s.endpointsTableName)

	result, err := s.db.ExecContext(ctx, query, secretEncrypted, time.Now().UTC(), endpointID)
	if err != nil {
		return fmt.Errorf("update endpoint secret: %w", err)
	}
	return requireRow(result)
}

// DeleteEndpoint removes an endpoint and its deliveries (cascade).
func (s *PostgresStore) DeleteEndpoint(ctx context.Context, endpointID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.endpointsTableName)

	result, err := s.db.ExecContext(ctx, query, endpointID)
	if err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	return requireRow(result)
}

// ListEndpoints lists all endpoints in a domain.
func (s *PostgresStore) ListEndpoints(ctx context.Context, domainID string) ([]WebhookEndpoint, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE domain_id = $1 ORDER BY created_at ASC
	`, endpointColumns, s.endpointsTableName)

	return s.queryEndpoints(ctx, query, domainID)
}

// ListSubscribedEndpoints returns active endpoints subscribed to the event type
// or the wildcard.
func (s *PostgresStore) ListSubscribedEndpoints(ctx context.Context, domainID, eventType string) ([]WebhookEndpoint, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE domain_id = $1 AND is_active = TRUE AND (event_types @> ARRAY[$2]::TEXT[] OR event_types @> ARRAY['*']::TEXT[])
		ORDER BY created_at ASC
	`, endpointColumns, s.endpointsTableName)

	return s.queryEndpoints(ctx, query, domainID, eventType)
}

func (s *PostgresStore) queryEndpoints(ctx context.Context, query string, args ...interface{}) ([]WebhookEndpoint, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []WebhookEndpoint
	for rows.Next() {
		endpoint, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		endpoints = append(endpoints, endpoint)
	}
	return endpoints, rows.Err()
}

// RecordEndpointSuccess resets the failure streak after a delivered webhook.
func (s *PostgresStore) RecordEndpointSuccess(ctx context.Context, endpointID string, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET consecutive_failures = 0, last_success_at = $1, updated_at = $1
		WHERE id = $2
	`, s.endpointsTableName)

	result, err := s.db.ExecContext(ctx, query, at, endpointID)
	if err != nil {
		return fmt.Errorf("record endpoint success: %w", err)
	}
	return requireRow(result)
}

// RecordEndpointFailure extends the failure streak, deactivating the endpoint
// once the ceiling is reached. The increment and the deactivation check run in
// one statement so concurrent workers cannot lose updates.
func (s *PostgresStore) RecordEndpointFailure(ctx context.Context, endpointID string, at time.Time, disableAfter int) (int, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET consecutive_failures = consecutive_failures + 1,
		    last_failure_at = $1,
		    updated_at = $1,
		    is_active = CASE WHEN $2 > 0 AND consecutive_failures + 1 >= $2 THEN FALSE ELSE is_active END
		WHERE id = $3
		RETURNING consecutive_failures
	`, s.endpointsTableName)

	var failures int
	err := s.db.QueryRowContext(ctx, query, at, disableAfter, endpointID).Scan(&failures)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("record endpoint failure: %w", err)
	}
	return failures, nil
}

// CreateDelivery creates one pending delivery for an (event, endpoint) pair.
func (s *PostgresStore) CreateDelivery(ctx context.Context, eventID, endpointID string) (WebhookDelivery, error) {
	now := time.Now().UTC()
	delivery := WebhookDelivery{
		ID:            generateDeliveryID(),
		EventID:       eventID,
		EndpointID:    endpointID,
		Status:        DeliveryStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, webhook_event_id, webhook_endpoint_id, status, attempt_count, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
	`, s.deliveriesTableName)

	_, err := s.db.ExecContext(ctx, query,
		delivery.ID, eventID, endpointID, delivery.Status, delivery.NextAttemptAt, delivery.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return WebhookDelivery{}, ErrDuplicateDelivery
		}
		return WebhookDelivery{}, fmt.Errorf("insert delivery: %w", err)
	}
	return delivery, nil
}

const deliveryColumns = "id, webhook_event_id, webhook_endpoint_id, status, attempt_count, next_attempt_at, locked_at, last_response_status, last_response_body, last_error, completed_at, created_at"

// GetDelivery retrieves a delivery by ID.
func (s *PostgresStore) GetDelivery(ctx context.Context, deliveryID string) (WebhookDelivery, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, deliveryColumns, s.deliveriesTableName)

	delivery, err := scanDelivery(s.db.QueryRowContext(ctx, query, deliveryID))
	if err != nil {
		if err == sql.ErrNoRows {
			return WebhookDelivery{}, ErrNotFound
		}
		return WebhookDelivery{}, fmt.Errorf("query delivery: %w", err)
	}
	return delivery, nil
}

// ClaimPendingBatch atomically claims up to limit due deliveries.
//
// The locking read with SKIP LOCKED is what makes concurrent claims safe:
// rows selected by one worker's transaction are invisible to another's claim,
// and workers never block on each other's locks, so throughput scales with
// worker count.
func (s *PostgresStore) ClaimPendingBatch(ctx context.Context, limit int) ([]ClaimedDelivery, error) {
	now := time.Now().UTC()

	query := fmt.Sprintf(`
		WITH claimed AS (
			SELECT id FROM %[1]s
			WHERE status = $1 AND next_attempt_at <= $2
			ORDER BY next_attempt_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE %[1]s d
		SET status = $4, locked_at = $2
		FROM claimed, %[2]s e, %[3]s ev
		WHERE d.id = claimed.id
		  AND e.id = d.webhook_endpoint_id
		  AND ev.id = d.webhook_event_id
		RETURNING d.id, d.webhook_event_id, d.webhook_endpoint_id, d.status, d.attempt_count,
		          d.next_attempt_at, d.locked_at, d.last_response_status, d.last_response_body,
		          d.last_error, d.completed_at, d.created_at,
		          e.url, e.secret_encrypted, ev.event_type, ev.payload_raw, ev.created_at
	`, s.deliveriesTableName, s.endpointsTableName, s.eventsTableName)

	rows, err := s.db.QueryContext(ctx, query, DeliveryStatusPending, now, limit, DeliveryStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("claim pending batch: %w", err)
	}
	defer rows.Close()

	var claimed []ClaimedDelivery
	for rows.Next() {
		var c ClaimedDelivery
		var lockedAt, completedAt sql.NullTime
		err := rows.Scan(
			&c.Delivery.ID, &c.Delivery.EventID, &c.Delivery.EndpointID, &c.Delivery.Status,
			&c.Delivery.AttemptCount, &c.Delivery.NextAttemptAt, &lockedAt,
			&c.Delivery.LastResponseStatus, &c.Delivery.LastResponseBody, &c.Delivery.LastError,
			&completedAt, &c.Delivery.CreatedAt,
			&c.EndpointURL, &c.SecretEncrypted, &c.EventType, &c.PayloadRaw, &c.EventCreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan claimed delivery: %w", err)
		}
		if lockedAt.Valid {
			c.Delivery.LockedAt = &lockedAt.Time
		}
		if completedAt.Valid {
			c.Delivery.CompletedAt = &completedAt.Time
		}
		claimed = append(claimed, c)
	}
	return claimed, rows.Err()
}

// MarkDeliverySucceeded finalizes a claimed delivery as delivered.
func (s *PostgresStore) MarkDeliverySucceeded(ctx context.Context, deliveryID string, outcome AttemptOutcome) error {
	now := time.Now().UTC()
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, attempt_count = attempt_count + 1, locked_at = NULL,
		    last_response_status = $2, last_response_body = $3, last_error = $4, completed_at = $5
		WHERE id = $6 AND status NOT IN ($7, $8)
	`, s.deliveriesTableName)

	result, err := s.db.ExecContext(ctx, query,
		DeliveryStatusSucceeded, outcome.ResponseStatus, outcome.ResponseBody, outcome.Error,
		now, deliveryID, DeliveryStatusSucceeded, DeliveryStatusAbandoned)
	if err != nil {
		return fmt.Errorf("mark delivery succeeded: %w", err)
	}
	return s.requireNonTerminalRow(ctx, result, deliveryID)
}

// MarkDeliveryRetrying returns a claimed delivery to pending with the attempt counted.
func (s *PostgresStore) MarkDeliveryRetrying(ctx context.Context, deliveryID string, outcome AttemptOutcome, nextAttemptAt time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, attempt_count = attempt_count + 1, locked_at = NULL,
		    last_response_status = $2, last_response_body = $3, last_error = $4, next_attempt_at = $5
		WHERE id = $6 AND status NOT IN ($7, $8)
	`, s.deliveriesTableName)

	result, err := s.db.ExecContext(ctx, query,
		DeliveryStatusPending, outcome.ResponseStatus, outcome.ResponseBody, outcome.Error,
		nextAttemptAt, deliveryID, DeliveryStatusSucceeded, DeliveryStatusAbandoned)
	if err != nil {
		return fmt.Errorf("mark delivery retrying: %w", err)
	}
	return s.requireNonTerminalRow(ctx, result, deliveryID)
}

// MarkDeliveryAbandoned finalizes a claimed delivery as terminally failed.
func (s *PostgresStore) MarkDeliveryAbandoned(ctx context.Context, deliveryID string, outcome AttemptOutcome) error {
	now := time.Now().UTC()
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, attempt_count = attempt_count + 1, locked_at = NULL,
		    last_response_status = $2, last_response_body = $3, last_error = $4, completed_at = $5
		WHERE id = $6 AND status NOT IN ($7, $8)
	`, s.deliveriesTableName)

	result, err := s.db.ExecContext(ctx, query,
		DeliveryStatusAbandoned, outcome.ResponseStatus, outcome.ResponseBody, outcome.Error,
		now, deliveryID, DeliveryStatusSucceeded, DeliveryStatusAbandoned)
	if err != nil {
		return fmt.Errorf("mark delivery abandoned: %w", err)
	}
	return s.requireNonTerminalRow(ctx, result, deliveryID)
}

// requireNonTerminalRow distinguishes a missing row from a terminal one when an
// update matched nothing.
func (s *PostgresStore) requireNonTerminalRow(ctx context.Context, result sql.Result, deliveryID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := s.GetDelivery(ctx, deliveryID); err != nil {
		return err
	}
	return ErrTerminalDelivery
}

// ReclaimStaleDeliveries rescues in_progress rows abandoned by a crashed worker.
func (s *PostgresStore) ReclaimStaleDeliveries(ctx context.Context, olderThan time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, attempt_count = attempt_count + 1, locked_at = NULL, next_attempt_at = $2
		WHERE status = $3 AND locked_at < $4
	`, s.deliveriesTableName)

	result, err := s.db.ExecContext(ctx, query,
		DeliveryStatusPending, time.Now().UTC(), DeliveryStatusInProgress, olderThan)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale deliveries: %w", err)
	}

	reclaimed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return reclaimed, nil
}

// RetryDelivery resets an abandoned delivery to pending (admin operation).
func (s *PostgresStore) RetryDelivery(ctx context.Context, deliveryID string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, next_attempt_at = $2, completed_at = NULL, last_error = ''
		WHERE id = $3 AND status = $4
	`, s.deliveriesTableName)

	result, err := s.db.ExecContext(ctx, query,
		DeliveryStatusPending, time.Now().UTC(), deliveryID, DeliveryStatusAbandoned)
	if err != nil {
		return fmt.Errorf("retry delivery: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetDelivery(ctx, deliveryID); err != nil {
			return err
		}
		return fmt.Errorf("delivery %s is not abandoned", deliveryID)
	}
	return nil
}

// ListDeliveriesByEvent lists deliveries created from one event.
func (s *PostgresStore) ListDeliveriesByEvent(ctx context.Context, eventID string, limit int) ([]WebhookDelivery, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE webhook_event_id = $1 ORDER BY created_at DESC LIMIT $2
	`, deliveryColumns, s.deliveriesTableName)
	return s.queryDeliveries(ctx, query, eventID, limit)
}

// ListDeliveriesByEndpoint lists deliveries targeting one endpoint.
func (s *PostgresStore) ListDeliveriesByEndpoint(ctx context.Context, endpointID string, limit int) ([]WebhookDelivery, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE webhook_endpoint_id = $1 ORDER BY created_at DESC LIMIT $2
	`, deliveryColumns, s.deliveriesTableName)
	return s.queryDeliveries(ctx, query, endpointID, limit)
}

// ListDeliveries lists deliveries with an optional status filter.
func (s *PostgresStore) ListDeliveries(ctx context.Context, status DeliveryStatus, limit int) ([]WebhookDelivery, error) {
	if status == "" {
		query := fmt.Sprintf(`
			SELECT %s FROM %s ORDER BY created_at DESC LIMIT $1
		`, deliveryColumns, s.deliveriesTableName)
		return s.queryDeliveries(ctx, query, limit)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE status = $1 ORDER BY created_at DESC LIMIT $2
	`, deliveryColumns, s.deliveriesTableName)
	return s.queryDeliveries(ctx, query, status, limit)
}

func (s *PostgresStore) queryDeliveries(ctx context.Context, query string, args ...interface{}) ([]WebhookDelivery, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []WebhookDelivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries, rows.Err()
}

// CountDueDeliveries reports pending deliveries due for attempt now.
func (s *PostgresStore) CountDueDeliveries(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s WHERE status = $1 AND next_attempt_at <= $2
	`, s.deliveriesTableName)

	var due int64
	if err := s.db.QueryRowContext(ctx, query, DeliveryStatusPending, time.Now().UTC()).Scan(&due); err != nil {
		return 0, fmt.Errorf("count due deliveries: %w", err)
	}
	return due, nil
}

// Close closes the database connection if this store owns it.
func (s *PostgresStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEndpoint(sc scanner) (WebhookEndpoint, error) {
	var endpoint WebhookEndpoint
	var lastSuccessAt, lastFailureAt sql.NullTime

	err := sc.Scan(
		&endpoint.ID, &endpoint.DomainID, &endpoint.URL, &endpoint.Description,
		&endpoint.SecretEncrypted, pq.Array(&endpoint.EventTypes), &endpoint.IsActive,
		&endpoint.ConsecutiveFailures, &lastSuccessAt, &lastFailureAt,
		&endpoint.CreatedAt, &endpoint.UpdatedAt,
	)
	if err != nil {
		return WebhookEndpoint{}, err
	}

	if lastSuccessAt.Valid {
		endpoint.LastSuccessAt = &lastSuccessAt.Time
	}
	if lastFailureAt.Valid {
		endpoint.LastFailureAt = &lastFailureAt.Time
	}
	return endpoint, nil
}

func scanDelivery(sc scanner) (WebhookDelivery, error) {
	var delivery WebhookDelivery
	var lockedAt, completedAt sql.NullTime

	err := sc.Scan(
		&delivery.ID, &delivery.EventID, &delivery.EndpointID, &delivery.Status,
		&delivery.AttemptCount, &delivery.NextAttemptAt, &lockedAt,
		&delivery.LastResponseStatus, &delivery.LastResponseBody, &delivery.LastError,
		&completedAt, &delivery.CreatedAt,
	)
	if err != nil {
		return WebhookDelivery{}, err
	}

	if lockedAt.Valid {
		delivery.LockedAt = &lockedAt.Time
	}
	if completedAt.Valid {
		delivery.CompletedAt = &completedAt.Time
	}
	return delivery, nil
}

// requireRow converts a zero-row update into ErrNotFound.
func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
