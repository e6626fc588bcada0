package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cardinity-gateway/internal/common"
	"github.com/noah-isme/cardinity-gateway/internal/events"
)

func paidEvent() events.Event {
	payload, _ := json.Marshal(map[string]any{
		"externalOrderId": "100000123",
		"email":           "shopper@example.com",
	})
	return events.Event{
		Topic:      events.TopicOrderPaid,
		Payload:    payload,
		OccurredAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEmailNotifierSendsPaidConfirmation(t *testing.T) {
	mail := &common.InMemoryEmail{}
	n := EmailNotifier{Mail: mail, Enabled: true}

	require.NoError(t, n.Notify(context.Background(), paidEvent()))
	require.Len(t, mail.Outbox, 1)
	require.Equal(t, "shopper@example.com", mail.Outbox[0].To)
	require.Equal(t, "Payment received", mail.Outbox[0].Subject)
	require.Contains(t, mail.Outbox[0].HTML, "100000123")
}

func TestEmailNotifierDisabled(t *testing.T) {
	mail := &common.InMemoryEmail{}
	n := EmailNotifier{Mail: mail, Enabled: false}

	require.NoError(t, n.Notify(context.Background(), paidEvent()))
	require.Empty(t, mail.Outbox)
}

func TestEmailNotifierTopicToggle(t *testing.T) {
	mail := &common.InMemoryEmail{}
	n := EmailNotifier{
		Mail:         mail,
		Enabled:      true,
		TopicToggles: map[string]bool{events.TopicOrderPaid: false},
	}

	require.NoError(t, n.Notify(context.Background(), paidEvent()))
	require.Empty(t, mail.Outbox)
}

func TestEmailNotifierSkipsMissingRecipient(t *testing.T) {
	mail := &common.InMemoryEmail{}
	n := EmailNotifier{Mail: mail, Enabled: true}

	ev := paidEvent()
	ev.Payload = []byte(`{"externalOrderId":"100000123"}`)
	require.NoError(t, n.Notify(context.Background(), ev))
	require.Empty(t, mail.Outbox)
}

func TestEmailTaskHandlerDeliversQueuedEvent(t *testing.T) {
	mail := &common.InMemoryEmail{}
	h := EmailTaskHandler{Emails: EmailNotifier{Mail: mail, Enabled: true}}

	ev := paidEvent()
	payload, err := json.Marshal(emailTaskPayload{
		Topic:      ev.Topic,
		Payload:    ev.Payload,
		OccurredAt: ev.OccurredAt,
	})
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask(TaskOrderEmail, payload)))
	require.Len(t, mail.Outbox, 1)
	require.Equal(t, "Payment received", mail.Outbox[0].Subject)
}

func TestEmailTaskHandlerSkipsRetryOnGarbage(t *testing.T) {
	h := EmailTaskHandler{Emails: EmailNotifier{Mail: &common.InMemoryEmail{}, Enabled: true}}

	err := h.ProcessTask(context.Background(), asynq.NewTask(TaskOrderEmail, []byte("not-json")))
	require.Error(t, err)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
