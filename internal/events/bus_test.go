package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cardinity-gateway/internal/events"
)

type memStore struct {
	inserted []events.Event
}

func (s *memStore) InsertEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	ev := events.Event{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}
	s.inserted = append(s.inserted, ev)
	return ev, nil
}

type recordingNotifier struct {
	seen []events.Event
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, ev events.Event) error {
	n.seen = append(n.seen, ev)
	return n.err
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	store := &memStore{}
	notifier := &recordingNotifier{}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	orderID := uuid.New()
	ev, err := bus.Emit(context.Background(), events.TopicOrderPaid, orderID, map[string]any{"orderId": orderID.String()})
	require.NoError(t, err)
	require.Equal(t, events.TopicOrderPaid, ev.Topic)
	require.Len(t, store.inserted, 1)
	require.Len(t, notifier.seen, 1)
	require.JSONEq(t, `{"orderId":"`+orderID.String()+`"}`, string(ev.Payload))
}

func TestEmitRejectsMissingTopicOrAggregate(t *testing.T) {
	bus := &events.Bus{Store: &memStore{}}

	_, err := bus.Emit(context.Background(), "", uuid.New(), nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicOrderPaid, uuid.Nil, nil)
	require.Error(t, err)
}

func TestEmitAggregatesNotifierErrors(t *testing.T) {
	store := &memStore{}
	failing := &recordingNotifier{err: errors.New("smtp down")}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{failing}}

	_, err := bus.Emit(context.Background(), events.TopicPaymentFailed, uuid.New(), nil)
	require.Error(t, err)
	require.Len(t, store.inserted, 1, "event persisted even when a notifier fails")
}
