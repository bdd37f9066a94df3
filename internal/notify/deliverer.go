package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kuropos/backend-pos/internal/obs"
	"github.com/kuropos/backend-pos/internal/store"
)

// deliveryStore is the slice of store.WebhookStore the deliverer needs.
type deliveryStore interface {
	GetDelivery(ctx context.Context, id string) (store.WebhookDelivery, error)
	GetEndpoint(ctx context.Context, id string) (store.WebhookEndpoint, error)
	MarkDelivered(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string, final bool) error
}

type eventGetter interface {
	GetByID(ctx context.Context, id string) (store.DomainEvent, error)
}

// Deliverer executes webhook deliveries pulled off the task queue. It
// implements asynq.Handler for TaskTypeWebhookDeliver.
type Deliverer struct {
	Webhooks deliveryStore
	Events   eventGetter
	Client   *http.Client
	Log      zerolog.Logger
}

// ProcessTask performs one signed delivery attempt. Returning an error lets
// asynq retry with its backoff; on the final retry the delivery is marked
// failed for good.
func (d *Deliverer) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload deliveryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode delivery task: %w", err)
	}
	delivery, err := d.Webhooks.GetDelivery(ctx, payload.DeliveryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if delivery.Status == store.DeliveryDelivered {
		return nil
	}
	endpoint, err := d.Webhooks.GetEndpoint(ctx, delivery.EndpointID)
	if err != nil {
		return err
	}
	event, err := d.Events.GetByID(ctx, delivery.EventID)
	if err != nil {
		return err
	}
	status, err := d.deliver(ctx, endpoint, event, delivery)
	if err == nil && status >= 200 && status < 300 {
		if obs.WebhookDeliveriesTotal != nil {
			obs.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
		}
		return d.Webhooks.MarkDelivered(ctx, delivery.ID)
	}
	reason := fmt.Sprintf("status %d", status)
	if err != nil {
		reason = err.Error()
	}
	retried, retriedOK := asynq.GetRetryCount(ctx)
	maxRetry, maxOK := asynq.GetMaxRetry(ctx)
	final := retriedOK && maxOK && retried >= maxRetry
	if obs.WebhookDeliveriesTotal != nil {
		obs.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
	}
	if markErr := d.Webhooks.MarkFailed(ctx, delivery.ID, reason, final); markErr != nil {
		return errors.Join(markErr, fmt.Errorf("delivery failed: %s", reason))
	}
	d.Log.Warn().
		Str("delivery_id", delivery.ID).
		Str("endpoint_id", endpoint.ID).
		Bool("final", final).
		Msg("webhook delivery failed")
	return fmt.Errorf("delivery failed: %s", reason)
}

func (d *Deliverer) deliver(ctx context.Context, ep store.WebhookEndpoint, ev store.DomainEvent, del store.WebhookDelivery) (int, error) {
	client := d.Client
	if client == nil {
		client = HTTPClient(5000, false)
	}
	ctx, span := otel.Tracer("notify.Deliverer").Start(ctx, "Deliverer.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.endpoint_id", ep.ID),
		attribute.String("webhook.delivery_id", del.ID),
		attribute.String("webhook.topic", ev.Topic),
	)
	if err := validateURL(ep.URL); err != nil {
		span.RecordError(err)
		return 0, err
	}
	body, err := json.Marshal(struct {
		EventID     string          `json:"eventId"`
		Topic       string          `json:"topic"`
		AggregateID string          `json:"aggregateId"`
		Data        json.RawMessage `json:"data"`
		OccurredAt  time.Time       `json:"occurredAt"`
	}{
		EventID:     ev.ID,
		Topic:       ev.Topic,
		AggregateID: ev.AggregateID,
		Data:        json.RawMessage(ev.Payload),
		OccurredAt:  ev.OccurredAt,
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	ts := time.Now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "backend-pos-webhooks/1.0")
	req.Header.Set("X-Event-ID", ev.ID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Idempotency-Key", del.ID)
	req.Header.Set("X-Signature", ComputeSignature(ep.Secret, ts, ev.ID, body))
	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp.StatusCode, nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}

// ComputeSignature calculates the webhook signature for the provided payload.
// The format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the endpoint
// secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPClient returns an HTTP client configured for webhook delivery.
func HTTPClient(timeoutMs int, insecure bool) *http.Client {
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	transport := &http.Transport{}
	if insecure {
		transport.TLSClientConfig = insecureTLSConfig
	}
	return &http.Client{
		Timeout:   time.Duration(timeoutMs) * time.Millisecond,
		Transport: otelhttp.NewTransport(transport),
	}
}

var insecureTLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
