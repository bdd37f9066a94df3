package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventStore persists domain events emitted by the engine.
type EventStore struct {
	pool *pgxpool.Pool
}

// Insert writes a domain event row and returns it with id and timestamp set.
func (s EventStore) Insert(ctx context.Context, topic, aggregateID string, payload []byte) (DomainEvent, error) {
	ev := DomainEvent{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
	}
	err := s.pool.QueryRow(ctx, `
INSERT INTO domain_events (id, topic, aggregate_id, payload)
VALUES ($1, $2, $3, $4)
RETURNING occurred_at`,
		ev.ID, ev.Topic, ev.AggregateID, ev.Payload,
	).Scan(&ev.OccurredAt)
	if err != nil {
		return DomainEvent{}, translateError(err)
	}
	return ev, nil
}

// GetByID loads one persisted event.
func (s EventStore) GetByID(ctx context.Context, id string) (DomainEvent, error) {
	var ev DomainEvent
	err := s.pool.QueryRow(ctx, `
SELECT id::text, topic, aggregate_id::text, payload, occurred_at
FROM domain_events
WHERE id = $1`, id).Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return DomainEvent{}, ErrNotFound
	}
	return ev, err
}
