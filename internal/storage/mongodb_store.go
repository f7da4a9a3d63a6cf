package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/AuthPort/server/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store using MongoDB. The claim protocol uses
// per-document FindOneAndUpdate, which MongoDB applies atomically: a document
// matched and updated by one worker no longer matches the filter for another,
// so no delivery is ever claimed twice.
type MongoStore struct {
	client     *mongo.Client
	events     *mongo.Collection
	endpoints  *mongo.Collection
	deliveries *mongo.Collection
}

// mongoEvent mirrors WebhookEvent with explicit bson tags.
type mongoEvent struct {
	ID         string    `bson:"_id"`
	DomainID   string    `bson:"domain_id"`
	EventType  string    `bson:"event_type"`
	Payload    bson.Raw  `bson:"payload"`
	PayloadRaw []byte    `bson:"payload_raw"`
	CreatedAt  time.Time `bson:"created_at"`
}

// mongoEndpoint mirrors WebhookEndpoint with explicit bson tags.
type mongoEndpoint struct {
	ID                  string     `bson:"_id"`
	DomainID            string     `bson:"domain_id"`
	URL                 string     `bson:"url"`
	Description         string     `bson:"description"`
	SecretEncrypted     []byte     `bson:"secret_encrypted"`
	EventTypes          []string   `bson:"event_types"`
	IsActive            bool       `bson:"is_active"`
	ConsecutiveFailures int        `bson:"consecutive_failures"`
	LastSuccessAt       *time.Time `bson:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `bson:"last_failure_at,omitempty"`
	CreatedAt           time.Time  `bson:"created_at"`
	UpdatedAt           time.Time  `bson:"updated_at"`
}

// mongoDelivery mirrors WebhookDelivery with explicit bson tags.
type mongoDelivery struct {
	ID                 string         `bson:"_id"`
	EventID            string         `bson:"webhook_event_id"`
	EndpointID         string         `bson:"webhook_endpoint_id"`
	Status             DeliveryStatus `bson:"status"`
	AttemptCount       int            `bson:"attempt_count"`
	NextAttemptAt      time.Time      `bson:"next_attempt_at"`
	LockedAt           *time.Time     `bson:"locked_at,omitempty"`
	LastResponseStatus int            `bson:"last_response_status"`
	LastResponseBody   string         `bson:"last_response_body"`
	LastError          string         `bson:"last_error"`
	CompletedAt        *time.Time     `bson:"completed_at,omitempty"`
	CreatedAt          time.Time      `bson:"created_at"`
}

// NewMongoStore creates a MongoDB-backed store.
func NewMongoStore(ctx context.Context, cfg config.StorageConfig) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoDBURL))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		// Disconnect() error during initialization cleanup is not actionable.
		_ = client.Disconnect(connectCtx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(cfg.MongoDBDatabase)
	store := &MongoStore{
		client:     client,
		events:     db.Collection(cfg.EventsTableName),
		endpoints:  db.Collection(cfg.EndpointsTableName),
		deliveries: db.Collection(cfg.DeliveriesTableName),
	}

	if err := store.createIndexes(connectCtx); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, err
	}

	return store, nil
}

// createIndexes provisions the indexes the claim and lookup queries rely on.
func (s *MongoStore) createIndexes(ctx context.Context) error {
	_, err := s.deliveries.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
		{Keys: bson.D{{Key: "webhook_event_id", Value: 1}}},
		{Keys: bson.D{{Key: "webhook_endpoint_id", Value: 1}}},
		{
			Keys:    bson.D{{Key: "webhook_event_id", Value: 1}, {Key: "webhook_endpoint_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("create delivery indexes: %w", err)
	}

	_, err = s.endpoints.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "domain_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create endpoint indexes: %w", err)
	}
	return nil
}

// CreateEvent appends an event to the log.
func (s *MongoStore) CreateEvent(ctx context.Context, event WebhookEvent) (WebhookEvent, error) {
	if event.ID == "" {
		event.ID = generateEventID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	doc := mongoEvent{
		ID:         event.ID,
		DomainID:   event.DomainID,
		EventType:  event.EventType,
		PayloadRaw: event.PayloadRaw,
		CreatedAt:  event.CreatedAt,
	}
	if len(event.Payload) > 0 {
		raw, err := bsonFromJSON(event.Payload)
		if err != nil {
			return WebhookEvent{}, fmt.Errorf("convert payload: %w", err)
		}
		doc.Payload = raw
	}

	if _, err := s.events.InsertOne(ctx, doc); err != nil {
		return WebhookEvent{}, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// GetEvent retrieves an event by ID.
func (s *MongoStore) GetEvent(ctx context.Context, eventID string) (WebhookEvent, error) {
	var doc mongoEvent
	err := s.events.FindOne(ctx, bson.M{"_id": eventID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return WebhookEvent{}, ErrNotFound
		}
		return WebhookEvent{}, fmt.Errorf("query event: %w", err)
	}
	return eventFromMongo(doc)
}

// CreateEndpoint registers a delivery target.
func (s *MongoStore) CreateEndpoint(ctx context.Context, endpoint WebhookEndpoint) (WebhookEndpoint, error) {
	if endpoint.ID == "" {
		endpoint.ID = generateEndpointID()
	}
	now := time.Now().UTC()
	if endpoint.CreatedAt.IsZero() {
		endpoint.CreatedAt = now
	}
	endpoint.UpdatedAt = now

	if _, err := s.endpoints.InsertOne(ctx, endpointToMongo(endpoint)); err != nil {
		return WebhookEndpoint{}, fmt.Errorf("insert endpoint: %w", err)
	}
	return endpoint, nil
}

// GetEndpoint retrieves an endpoint by ID.
func (s *MongoStore) GetEndpoint(ctx context.Context, endpointID string) (WebhookEndpoint, error) {
	var doc mongoEndpoint
	err := s.endpoints.FindOne(ctx, bson.M{"_id": endpointID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return WebhookEndpoint{}, ErrNotFound
		}
		return WebhookEndpoint{}, fmt.Errorf("query endpoint: %w", err)
	}
	return endpointFromMongo(doc), nil
}

// UpdateEndpoint replaces the tenant-configurable fields of an endpoint.
func (s *MongoStore) UpdateEndpoint(ctx context.Context, endpoint WebhookEndpoint) error {
	update := bson.M{"$set": bson.M{
		"url":         endpoint.URL,
		"description": endpoint.Description,
		"event_types": endpoint.EventTypes,
		"is_active":   endpoint.IsActive,
		"updated_at":  time.Now().UTC(),
	}}

	result, err := s.endpoints.UpdateOne(ctx, bson.M{"_id": endpoint.ID}, update)
	if err != nil {
		return fmt.Errorf("update endpoint: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateEndpointSecret rotates the encrypted signing secret.
func (s *MongoStore) UpdateEndpointSecret(ctx context.Context, endpointID string, secretEncrypted []byte) error {
	update := bson.M{"$set": bson.M{
		"secret_encrypted": secretEncrypted,
		"updated_at":       time.Now().UTC(),
	}}

	result, err := s.endpoints.UpdateOne(ctx, bson.M{"_id": endpointID}, update)
	if err != nil {
		return fmt.Errorf("update endpoint secret: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEndpoint removes an endpoint and its deliveries.
func (s *MongoStore) DeleteEndpoint(ctx context.Context, endpointID string) error {
	result, err := s.endpoints.DeleteOne(ctx, bson.M{"_id": endpointID})
	if err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}

	if _, err := s.deliveries.DeleteMany(ctx, bson.M{"webhook_endpoint_id": endpointID}); err != nil {
		return fmt.Errorf("delete endpoint deliveries: %w", err)
	}
	return nil
}

// ListEndpoints lists all endpoints in a domain.
func (s *MongoStore) ListEndpoints(ctx context.Context, domainID string) ([]WebhookEndpoint, error) {
	return s.queryEndpoints(ctx, bson.M{"domain_id": domainID})
}

// ListSubscribedEndpoints returns active endpoints subscribed to the event type.
func (s *MongoStore) ListSubscribedEndpoints(ctx context.Context, domainID, eventType string) ([]WebhookEndpoint, error) {
	filter := bson.M{
		"domain_id":   domainID,
		"is_active":   true,
		"event_types": bson.M{"$in": []string{eventType, EventTypeWildcard}},
	}
	return s.queryEndpoints(ctx, filter)
}

func (s *MongoStore) queryEndpoints(ctx context.Context, filter bson.M) ([]WebhookEndpoint, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.endpoints.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query endpoints: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoEndpoint
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode endpoints: %w", err)
	}

	endpoints := make([]WebhookEndpoint, 0, len(docs))
	for _, doc := range docs {
		endpoints = append(endpoints, endpointFromMongo(doc))
	}
	return endpoints, nil
}

// RecordEndpointSuccess resets the failure streak after a delivered webhook.
func (s *MongoStore) RecordEndpointSuccess(ctx context.Context, endpointID string, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"consecutive_failures": 0,
		"last_success_at":      at,
		"updated_at":           at,
	}}

	result, err := s.endpoints.UpdateOne(ctx, bson.M{"_id": endpointID}, update)
	if err != nil {
		return fmt.Errorf("record endpoint success: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordEndpointFailure extends the failure streak, deactivating the endpoint
// once the ceiling is reached.
func (s *MongoStore) RecordEndpointFailure(ctx context.Context, endpointID string, at time.Time, disableAfter int) (int, error) {
	update := bson.M{
		"$inc": bson.M{"consecutive_failures": 1},
		"$set": bson.M{"last_failure_at": at, "updated_at": at},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc mongoEndpoint
	err := s.endpoints.FindOneAndUpdate(ctx, bson.M{"_id": endpointID}, update, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("record endpoint failure: %w", err)
	}

	if disableAfter > 0 && doc.ConsecutiveFailures >= disableAfter && doc.IsActive {
		_, err := s.endpoints.UpdateOne(ctx, bson.M{"_id": endpointID}, bson.M{"$set": bson.M{"is_active": false}})
		if err != nil {
			return doc.ConsecutiveFailures, fmt.Errorf("deactivate endpoint: %w", err)
		}
	}
	return doc.ConsecutiveFailures, nil
}

// CreateDelivery creates one pending delivery for an (event, endpoint) pair.
// The unique (event, endpoint) index rejects duplicates.
func (s *MongoStore) CreateDelivery(ctx context.Context, eventID, endpointID string) (WebhookDelivery, error) {
	now := time.Now().UTC()
	doc := mongoDelivery{
		ID:            generateDeliveryID(),
		EventID:       eventID,
		EndpointID:    endpointID,
		Status:        DeliveryStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}

	if _, err := s.deliveries.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return WebhookDelivery{}, ErrDuplicateDelivery
		}
		return WebhookDelivery{}, fmt.Errorf("insert delivery: %w", err)
	}
	return deliveryFromMongo(doc), nil
}

// GetDelivery retrieves a delivery by ID.
func (s *MongoStore) GetDelivery(ctx context.Context, deliveryID string) (WebhookDelivery, error) {
	var doc mongoDelivery
	err := s.deliveries.FindOne(ctx, bson.M{"_id": deliveryID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return WebhookDelivery{}, ErrNotFound
		}
		return WebhookDelivery{}, fmt.Errorf("query delivery: %w", err)
	}
	return deliveryFromMongo(doc), nil
}

// ClaimPendingBatch atomically claims up to limit due deliveries.
//
// Each iteration is an atomic claim of one document: FindOneAndUpdate only
// matches documents still pending, so a document taken by a concurrent worker
// simply stops matching. This is the visibility-timeout dequeue shape of the
// SQL SKIP LOCKED claim.
func (s *MongoStore) ClaimPendingBatch(ctx context.Context, limit int) ([]ClaimedDelivery, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"status":          DeliveryStatusPending,
		"next_attempt_at": bson.M{"$lte": now},
	}
	update := bson.M{"$set": bson.M{
		"status":    DeliveryStatusInProgress,
		"locked_at": now,
	}}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "next_attempt_at", Value: 1}}).
		SetReturnDocument(options.After)

	var claimed []ClaimedDelivery
	for i := 0; i < limit; i++ {
		var doc mongoDelivery
		err := s.deliveries.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				break
			}
			return claimed, fmt.Errorf("claim delivery: %w", err)
		}

		endpoint, err := s.GetEndpoint(ctx, doc.EndpointID)
		if err != nil {
			continue
		}
		event, err := s.GetEvent(ctx, doc.EventID)
		if err != nil {
			continue
		}

		claimed = append(claimed, ClaimedDelivery{
			Delivery:        deliveryFromMongo(doc),
			EndpointURL:     endpoint.URL,
			SecretEncrypted: endpoint.SecretEncrypted,
			EventType:       event.EventType,
			PayloadRaw:      event.PayloadRaw,
			EventCreatedAt:  event.CreatedAt,
		})
	}
	return claimed, nil
}

// MarkDeliverySucceeded finalizes a claimed delivery as delivered.
func (s *MongoStore) MarkDeliverySucceeded(ctx context.Context, deliveryID string, outcome AttemptOutcome) error {
	now := time.Now().UTC()
	return s.resolve(ctx, deliveryID, bson.M{
		"$set": bson.M{
			"status":               DeliveryStatusSucceeded,
			"locked_at":            nil,
			"last_response_status": outcome.ResponseStatus,
			"last_response_body":   outcome.ResponseBody,
			"last_error":           outcome.Error,
			"completed_at":         now,
		},
		"$inc": bson.M{"attempt_count": 1},
	})
}

// MarkDeliveryRetrying returns a claimed delivery to pending with the attempt counted.
func (s *MongoStore) MarkDeliveryRetrying(ctx context.Context, deliveryID string, outcome AttemptOutcome, nextAttemptAt time.Time) error {
	return s.resolve(ctx, deliveryID, bson.M{
		"$set": bson.M{
			"status":               DeliveryStatusPending,
			"locked_at":            nil,
			"last_response_status": outcome.ResponseStatus,
			"last_response_body":   outcome.ResponseBody,
			"last_error":           outcome.Error,
			"next_attempt_at":      nextAttemptAt,
		},
		"$inc": bson.M{"attempt_count": 1},
	})
}

// MarkDeliveryAbandoned finalizes a claimed delivery as terminally failed.
func (s *MongoStore) MarkDeliveryAbandoned(ctx context.Context, deliveryID string, outcome AttemptOutcome) error {
	now := time.Now().UTC()
	return s.resolve(ctx, deliveryID, bson.M{
		"$set": bson.M{
			"status":               DeliveryStatusAbandoned,
			"locked_at":            nil,
			"last_response_status": outcome.ResponseStatus,
			"last_response_body":   outcome.ResponseBody,
			"last_error":           outcome.Error,
			"completed_at":         now,
		},
		"$inc": bson.M{"attempt_count": 1},
	})
}

// resolve applies an attempt outcome to a non-terminal delivery.
func (s *MongoStore) resolve(ctx context.Context, deliveryID string, update bson.M) error {
	filter := bson.M{
		"_id":    deliveryID,
		"status": bson.M{"$nin": []DeliveryStatus{DeliveryStatusSucceeded, DeliveryStatusAbandoned}},
	}

	result, err := s.deliveries.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := s.GetDelivery(ctx, deliveryID); err != nil {
			return err
		}
		return ErrTerminalDelivery
	}
	return nil
}

// ReclaimStaleDeliveries rescues in_progress documents abandoned by a crashed worker.
func (s *MongoStore) ReclaimStaleDeliveries(ctx context.Context, olderThan time.Time) (int64, error) {
	filter := bson.M{
		"status":    DeliveryStatusInProgress,
		"locked_at": bson.M{"$lt": olderThan},
	}
	update := bson.M{
		"$set": bson.M{
			"status":          DeliveryStatusPending,
			"locked_at":       nil,
			"next_attempt_at": time.Now().UTC(),
		},
		"$inc": bson.M{"attempt_count": 1},
	}

	result, err := s.deliveries.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale deliveries: %w", err)
	}
	return result.ModifiedCount, nil
}

// RetryDelivery resets an abandoned delivery to pending (admin operation).
func (s *MongoStore) RetryDelivery(ctx context.Context, deliveryID string) error {
	filter := bson.M{"_id": deliveryID, "status": DeliveryStatusAbandoned}
	update := bson.M{"$set": bson.M{
		"status":          DeliveryStatusPending,
		"next_attempt_at": time.Now().UTC(),
		"completed_at":    nil,
		"last_error":      "",
	}}

	result, err := s.deliveries.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("retry delivery: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := s.GetDelivery(ctx, deliveryID); err != nil {
			return err
		}
		return fmt.Errorf("delivery %s is not abandoned", deliveryID)
	}
	return nil
}

// ListDeliveriesByEvent lists deliveries created from one event.
func (s *MongoStore) ListDeliveriesByEvent(ctx context.Context, eventID string, limit int) ([]WebhookDelivery, error) {
	return s.queryDeliveries(ctx, bson.M{"webhook_event_id": eventID}, limit)
}

// ListDeliveriesByEndpoint lists deliveries targeting one endpoint.
func (s *MongoStore) ListDeliveriesByEndpoint(ctx context.Context, endpointID string, limit int) ([]WebhookDelivery, error) {
	return s.queryDeliveries(ctx, bson.M{"webhook_endpoint_id": endpointID}, limit)
}

// ListDeliveries lists deliveries with an optional status filter.
func (s *MongoStore) ListDeliveries(ctx context.Context, status DeliveryStatus, limit int) ([]WebhookDelivery, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return s.queryDeliveries(ctx, filter, limit)
}

func (s *MongoStore) queryDeliveries(ctx context.Context, filter bson.M, limit int) ([]WebhookDelivery, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.deliveries.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoDelivery
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode deliveries: %w", err)
	}

	deliveries := make([]WebhookDelivery, 0, len(docs))
	for _, doc := range docs {
		deliveries = append(deliveries, deliveryFromMongo(doc))
	}
	return deliveries, nil
}

// CountDueDeliveries reports pending deliveries due for attempt now.
func (s *MongoStore) CountDueDeliveries(ctx context.Context) (int64, error) {
	filter := bson.M{
		"status":          DeliveryStatusPending,
		"next_attempt_at": bson.M{"$lte": time.Now().UTC()},
	}

	due, err := s.deliveries.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count due deliveries: %w", err)
	}
	return due, nil
}

// Close disconnects the MongoDB client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// bsonFromJSON converts a JSON document to BSON for structured querying.
func bsonFromJSON(data []byte) (bson.Raw, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, err
	}
	return bson.Marshal(doc)
}

func eventFromMongo(doc mongoEvent) (WebhookEvent, error) {
	event := WebhookEvent{
		ID:         doc.ID,
		DomainID:   doc.DomainID,
		EventType:  doc.EventType,
		PayloadRaw: doc.PayloadRaw,
		CreatedAt:  doc.CreatedAt,
	}
	if len(doc.Payload) > 0 {
		jsonPayload, err := bson.MarshalExtJSON(doc.Payload, false, false)
		if err != nil {
			return WebhookEvent{}, fmt.Errorf("convert payload: %w", err)
		}
		event.Payload = jsonPayload
	}
	return event, nil
}

func endpointToMongo(e WebhookEndpoint) mongoEndpoint {
	return mongoEndpoint{
		ID:                  e.ID,
		DomainID:            e.DomainID,
		URL:                 e.URL,
		Description:         e.Description,
		SecretEncrypted:     e.SecretEncrypted,
		EventTypes:          e.EventTypes,
		IsActive:            e.IsActive,
		ConsecutiveFailures: e.ConsecutiveFailures,
		LastSuccessAt:       e.LastSuccessAt,
		LastFailureAt:       e.LastFailureAt,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func endpointFromMongo(doc mongoEndpoint) WebhookEndpoint {
	return WebhookEndpoint{
		ID:                  doc.ID,
		DomainID:            doc.DomainID,
		URL:                 doc.URL,
		Description:         doc.Description,
		SecretEncrypted:     doc.SecretEncrypted,
		EventTypes:          doc.EventTypes,
		IsActive:            doc.IsActive,
		ConsecutiveFailures: doc.ConsecutiveFailures,
		LastSuccessAt:       doc.LastSuccessAt,
		LastFailureAt:       doc.LastFailureAt,
		CreatedAt:           doc.CreatedAt,
		UpdatedAt:           doc.UpdatedAt,
	}
}

func deliveryFromMongo(doc mongoDelivery) WebhookDelivery {
	return WebhookDelivery{
		ID:                 doc.ID,
		EventID:            doc.EventID,
		EndpointID:         doc.EndpointID,
		Status:             doc.Status,
		AttemptCount:       doc.AttemptCount,
		NextAttemptAt:      doc.NextAttemptAt,
		LockedAt:           doc.LockedAt,
		LastResponseStatus: doc.LastResponseStatus,
		LastResponseBody:   doc.LastResponseBody,
		LastError:          doc.LastError,
		CompletedAt:        doc.CompletedAt,
		CreatedAt:          doc.CreatedAt,
	}
}
