package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kuropos/backend-pos/internal/events"
	"github.com/kuropos/backend-pos/internal/store"
)

type stubStore struct {
	lastTopic     string
	lastAggregate string
	lastPayload   []byte
	err           error
}

func (s *stubStore) Insert(_ context.Context, topic, aggregateID string, payload []byte) (store.DomainEvent, error) {
	s.lastTopic = topic
	s.lastAggregate = aggregateID
	s.lastPayload = payload
	if s.err != nil {
		return store.DomainEvent{}, s.err
	}
	return store.DomainEvent{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
	}, nil
}

type captureScheduler struct {
	events []store.DomainEvent
}

func (c *captureScheduler) Schedule(_ context.Context, event store.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

type captureNotifier struct {
	events []store.DomainEvent
}

func (c *captureNotifier) Notify(_ context.Context, event store.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsEvent(t *testing.T) {
	st := &stubStore{}
	scheduler := &captureScheduler{}
	notifier := &captureNotifier{}
	bus := events.Bus{
		Store:     st,
		Scheduler: scheduler,
		Notifiers: []events.Notifier{notifier},
	}

	saleID := uuid.NewString()
	event, err := bus.Emit(context.Background(), events.TopicSaleCommitted, saleID, map[string]any{"saleId": saleID})
	require.NoError(t, err)
	require.Equal(t, events.TopicSaleCommitted, st.lastTopic)
	require.Equal(t, saleID, st.lastAggregate)
	require.Len(t, scheduler.events, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, scheduler.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, saleID, decoded["saleId"])
}

func TestEmitRequiresTopicAndAggregate(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), " ", "agg", nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicDebtCreated, "", nil)
	require.Error(t, err)
}

func TestEmitStoreFailureAbortsDispatch(t *testing.T) {
	scheduler := &captureScheduler{}
	bus := events.Bus{
		Store:     &stubStore{err: errors.New("insert failed")},
		Scheduler: scheduler,
	}

	_, err := bus.Emit(context.Background(), events.TopicSaleCommitted, "agg", nil)
	require.Error(t, err)
	require.Empty(t, scheduler.events)
}

func TestEmitRejectsInvalidJSONPayload(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), events.TopicSaleCommitted, "agg", []byte(`{"broken":`))
	require.Error(t, err)
}
