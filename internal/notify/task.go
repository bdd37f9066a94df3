package notify

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskTypeWebhookDeliver is the asynq task type for a single webhook delivery.
const TaskTypeWebhookDeliver = "webhook:deliver"

type deliveryPayload struct {
	DeliveryID string `json:"deliveryId"`
}

// NewDeliveryTask builds the asynq task carrying one delivery id.
func NewDeliveryTask(deliveryID string) (*asynq.Task, error) {
	payload, err := json.Marshal(deliveryPayload{DeliveryID: deliveryID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWebhookDeliver, payload), nil
}
