package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookEndpoint is a registered delivery target for domain events.
type WebhookEndpoint struct {
	ID        string    `json:"endpointId"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Topics    []string  `json:"topics"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// WebhookDelivery tracks one endpoint/event delivery attempt chain.
type WebhookDelivery struct {
	ID         string    `json:"deliveryId"`
	EndpointID string    `json:"endpointId"`
	EventID    string    `json:"eventId"`
	Status     string    `json:"status"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"lastError,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Delivery statuses.
const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// WebhookStore persists endpoints and delivery bookkeeping. The retry
// schedule itself lives in the task queue, not in these rows.
type WebhookStore struct {
	pool *pgxpool.Pool
}

// InsertEndpoint registers a delivery target.
func (s WebhookStore) InsertEndpoint(ctx context.Context, ep WebhookEndpoint) (WebhookEndpoint, error) {
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
INSERT INTO webhook_endpoints (id, url, secret, topics, is_active)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`,
		ep.ID, ep.URL, ep.Secret, ep.Topics, ep.IsActive,
	).Scan(&ep.CreatedAt)
	if err != nil {
		return WebhookEndpoint{}, translateError(err)
	}
	return ep, nil
}

// ListActiveEndpointsForTopic returns active endpoints subscribed to topic.
func (s WebhookStore) ListActiveEndpointsForTopic(ctx context.Context, topic string) ([]WebhookEndpoint, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id::text, url, secret, topics, is_active, created_at
FROM webhook_endpoints
WHERE is_active AND $1 = ANY(topics)
ORDER BY created_at, id`, topic)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WebhookEndpoint
	for rows.Next() {
		var ep WebhookEndpoint
		if err := rows.Scan(&ep.ID, &ep.URL, &ep.Secret, &ep.Topics, &ep.IsActive, &ep.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ep)
	}
	return result, rows.Err()
}

// GetEndpoint loads one endpoint regardless of active flag.
func (s WebhookStore) GetEndpoint(ctx context.Context, id string) (WebhookEndpoint, error) {
	var ep WebhookEndpoint
	err := s.pool.QueryRow(ctx, `
SELECT id::text, url, secret, topics, is_active, created_at
FROM webhook_endpoints
WHERE id = $1`, id).Scan(&ep.ID, &ep.URL, &ep.Secret, &ep.Topics, &ep.IsActive, &ep.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return WebhookEndpoint{}, ErrNotFound
	}
	return ep, err
}

// InsertDelivery records a pending delivery for an endpoint/event pair.
func (s WebhookStore) InsertDelivery(ctx context.Context, endpointID, eventID string) (WebhookDelivery, error) {
	d := WebhookDelivery{
		ID:         uuid.NewString(),
		EndpointID: endpointID,
		EventID:    eventID,
		Status:     DeliveryPending,
	}
	err := s.pool.QueryRow(ctx, `
INSERT INTO webhook_deliveries (id, endpoint_id, event_id, status)
VALUES ($1, $2, $3, $4)
RETURNING created_at, updated_at`,
		d.ID, d.EndpointID, d.EventID, d.Status,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return WebhookDelivery{}, translateError(err)
	}
	return d, nil
}

// GetDelivery loads one delivery row.
func (s WebhookStore) GetDelivery(ctx context.Context, id string) (WebhookDelivery, error) {
	var d WebhookDelivery
	var lastError *string
	err := s.pool.QueryRow(ctx, `
SELECT id::text, endpoint_id::text, event_id::text, status, attempts, last_error, created_at, updated_at
FROM webhook_deliveries
WHERE id = $1`, id).Scan(&d.ID, &d.EndpointID, &d.EventID, &d.Status, &d.Attempts, &lastError, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return WebhookDelivery{}, ErrNotFound
	}
	if lastError != nil {
		d.LastError = *lastError
	}
	return d, err
}

// MarkDelivered finalises a delivery.
func (s WebhookStore) MarkDelivered(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE webhook_deliveries
SET status = $2, attempts = attempts + 1, last_error = NULL, updated_at = now()
WHERE id = $1`, id, DeliveryDelivered)
	return err
}

// MarkFailed records a failed attempt. The queue decides whether another
// attempt follows; final marks the row as exhausted.
func (s WebhookStore) MarkFailed(ctx context.Context, id, reason string, final bool) error {
	status := DeliveryPending
	if final {
		status = DeliveryFailed
	}
	_, err := s.pool.Exec(ctx, `
UPDATE webhook_deliveries
SET status = $2, attempts = attempts + 1, last_error = $3, updated_at = now()
WHERE id = $1`, id, status, reason)
	return err
}
