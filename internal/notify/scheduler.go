package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/kuropos/backend-pos/internal/store"
)

// endpointLister fans an event out to the endpoints subscribed to its topic.
type endpointLister interface {
	ListActiveEndpointsForTopic(ctx context.Context, topic string) ([]store.WebhookEndpoint, error)
	InsertDelivery(ctx context.Context, endpointID, eventID string) (store.WebhookDelivery, error)
}

// taskEnqueuer abstracts the asynq client for testing.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler records one pending delivery per subscribed endpoint and hands
// each to the task queue. It implements events.DeliveryScheduler.
// QueueName routes tasks onto a dedicated asynq queue; the worker must
// consume the same queue.
type Scheduler struct {
	Webhooks    endpointLister
	Queue       taskEnqueuer
	QueueName   string
	MaxAttempts int
	Log         zerolog.Logger
}

// Schedule inserts a delivery row for every active endpoint subscribed to the
// event's topic and enqueues a delivery task for each. A failing endpoint does
// not block the others.
func (s *Scheduler) Schedule(ctx context.Context, event store.DomainEvent) error {
	if s == nil || s.Webhooks == nil || s.Queue == nil {
		return nil
	}
	if strings.TrimSpace(event.Topic) == "" {
		return nil
	}
	endpoints, err := s.Webhooks.ListActiveEndpointsForTopic(ctx, event.Topic)
	if err != nil {
		return err
	}
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 6
	}
	opts := []asynq.Option{asynq.MaxRetry(maxAttempts)}
	if queue := strings.TrimSpace(s.QueueName); queue != "" {
		opts = append(opts, asynq.Queue(queue))
	}
	var joined error
	for _, ep := range endpoints {
		delivery, err := s.Webhooks.InsertDelivery(ctx, ep.ID, event.ID)
		if err != nil {
			joined = errors.Join(joined, err)
			continue
		}
		task, err := NewDeliveryTask(delivery.ID)
		if err != nil {
			joined = errors.Join(joined, err)
			continue
		}
		if _, err := s.Queue.EnqueueContext(ctx, task, opts...); err != nil {
			joined = errors.Join(joined, err)
			continue
		}
		s.Log.Debug().
			Str("topic", event.Topic).
			Str("endpoint_id", ep.ID).
			Str("delivery_id", delivery.ID).
			Msg("webhook delivery scheduled")
	}
	return joined
}
