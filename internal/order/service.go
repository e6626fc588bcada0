package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/cardinity-gateway/internal/events"
)

// Audit notes attached to order transitions.
const (
	notePaidSecured = "Payment 3-D security step succeeded. Finalized successfully."
	notePaidDirect  = "Payment received without 3-D security step."
	noteCanceled    = "Gateway has declined the payment."
)

// Service owns order state transitions triggered by the payment flow.
type Service struct {
	Store  Store
	Events *events.Bus
	Logger zerolog.Logger
}

// MarkPaid transitions the order to processing, records an audit note saying
// whether the 3-D Secure step ran, and sends the order confirmation exactly
// once. Both the immediate-approval and the post-challenge path land here.
func (s *Service) MarkPaid(ctx context.Context, o Order, securedViaChallenge bool) error {
	if s == nil || s.Store == nil {
		return errors.New("order service not configured")
	}
	if o.Status == StatusProcessing && o.EmailSent {
		// Already settled and notified; nothing to do.
		return nil
	}
	note := notePaidDirect
	if securedViaChallenge {
		note = notePaidSecured
	}
	if err := s.Store.UpdateStatus(ctx, o.ID, StatusProcessing); err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	if err := s.Store.InsertOrderEvent(ctx, o.ID, StatusProcessing, note); err != nil {
		s.Logger.Error().Err(err).Str("order_id", o.ID.String()).Msg("record order audit note")
	}
	if !o.EmailSent {
		s.emit(ctx, events.TopicOrderPaid, o, map[string]any{
			"orderId":         o.ID.String(),
			"externalOrderId": o.ExternalID,
			"email":           o.Email,
			"secured":         securedViaChallenge,
		})
		if err := s.Store.SetEmailSent(ctx, o.ID, true); err != nil {
			return fmt.Errorf("mark notification sent: %w", err)
		}
	}
	return nil
}

// Cancel flags the order as canceled with an audit note. Safe to call when
// the order is already canceled.
func (s *Service) Cancel(ctx context.Context, o Order) error {
	if s == nil || s.Store == nil {
		return errors.New("order service not configured")
	}
	if o.Status == StatusCanceled {
		return nil
	}
	if err := s.Store.UpdateStatus(ctx, o.ID, StatusCanceled); err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if err := s.Store.InsertOrderEvent(ctx, o.ID, StatusCanceled, noteCanceled); err != nil {
		s.Logger.Error().Err(err).Str("order_id", o.ID.String()).Msg("record order audit note")
	}
	s.emit(ctx, events.TopicOrderCanceled, o, map[string]any{
		"orderId":         o.ID.String(),
		"externalOrderId": o.ExternalID,
		"email":           o.Email,
	})
	return nil
}

func (s *Service) emit(ctx context.Context, topic string, o Order, payload map[string]any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, o.ID, payload); err != nil {
		s.Logger.Error().Err(err).Str("topic", topic).Str("order_id", o.ID.String()).Msg("emit order event")
	}
}
