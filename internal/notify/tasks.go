package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cardinity-gateway/internal/events"
)

// TaskOrderEmail is the asynq task type for transactional order emails.
const TaskOrderEmail = "email:order_event"

type emailTaskPayload struct {
	Topic       string          `json:"topic"`
	AggregateID uuid.UUID       `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// TaskEnqueuer hands emitted events to the background worker instead of
// sending email inline with the request.
type TaskEnqueuer struct {
	Client *asynq.Client
	Queue  string
}

// Notify implements the events.Notifier interface.
func (e TaskEnqueuer) Notify(ctx context.Context, event events.Event) error {
	if e.Client == nil {
		return nil
	}
	payload, err := json.Marshal(emailTaskPayload{
		Topic:       event.Topic,
		AggregateID: event.AggregateID,
		Payload:     event.Payload,
		OccurredAt:  event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("enqueue email task: encode: %w", err)
	}
	queue := e.Queue
	if queue == "" {
		queue = "default"
	}
	_, err = e.Client.EnqueueContext(ctx, asynq.NewTask(TaskOrderEmail, payload),
		asynq.Queue(queue), asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("enqueue email task: %w", err)
	}
	return nil
}

// EmailTaskHandler processes queued email tasks on the worker side.
type EmailTaskHandler struct {
	Emails EmailNotifier
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h EmailTaskHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var p emailTaskPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		// A malformed payload never becomes valid, skip retries.
		h.Logger.Error().Err(err).Msg("decode email task payload")
		return fmt.Errorf("decode email task: %w: %w", err, asynq.SkipRetry)
	}
	return h.Emails.Notify(ctx, events.Event{
		Topic:       p.Topic,
		AggregateID: p.AggregateID,
		Payload:     p.Payload,
		OccurredAt:  p.OccurredAt,
	})
}

// NewServeMux registers the worker-side task handlers.
func NewServeMux(handler EmailTaskHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TaskOrderEmail, handler)
	return mux
}
