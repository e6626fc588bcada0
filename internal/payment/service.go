package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/cardinity-gateway/internal/cardinity"
	"github.com/noah-isme/cardinity-gateway/internal/common"
	"github.com/noah-isme/cardinity-gateway/internal/obs"
	"github.com/noah-isme/cardinity-gateway/internal/order"
)

// Card is the card instrument supplied by the shopper for a single charge
// attempt. It is never persisted.
type Card struct {
	Pan      string `json:"pan" validate:"required,credit_card"`
	ExpMonth int    `json:"expMonth" validate:"required,gte=1,lte=12"`
	ExpYear  int    `json:"expYear" validate:"required,gte=2000,lte=2100"`
	CVC      string `json:"cvc" validate:"required,numeric,min=3,max=4"`
}

// Routes are the redirect targets handed back to the host checkout flow.
type Routes struct {
	Success   string
	Failure   string
	Challenge string
}

// Service sequences the two-phase charge / 3-D Secure completion flow.
type Service struct {
	Gateway   Gateway
	States    StateStore
	Orders    order.Store
	Flow      *order.Service
	Currency  string
	MinAmount int64 // minor units
	Routes    Routes
	Logger    zerolog.Logger
}

// Charge builds a charge request from the order and the supplied card,
// submits it, classifies the outcome, and persists the resulting
// authorization state for the session, replacing any prior state.
func (s *Service) Charge(ctx context.Context, sessionID string, o order.Order, card Card) (AuthorizationState, error) {
	if s == nil || s.Gateway == nil || s.States == nil {
		return AuthorizationState{}, errors.New("payment service not configured")
	}
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Charge")
	defer span.End()
	span.SetAttributes(attribute.String("order.external_id", o.ExternalID))

	if o.Total < s.MinAmount {
		return AuthorizationState{}, common.NewAppError("INVALID_AMOUNT",
			fmt.Sprintf("invalid order amount, minimum is %d.%02d", s.MinAmount/100, s.MinAmount%100),
			http.StatusUnprocessableEntity, nil)
	}
	if o.BillingCountry == "" || o.HolderName() == "" {
		return AuthorizationState{}, common.NewAppError("BILLING_ADDRESS_REQUIRED",
			"billing address is required", http.StatusUnprocessableEntity, nil)
	}

	req := cardinity.CreatePaymentRequest{
		Amount:        o.TotalDecimal(),
		Currency:      s.Currency,
		Settle:        true,
		OrderID:       o.ExternalID,
		Country:       o.BillingCountry,
		PaymentMethod: cardinity.PaymentMethodCard,
		PaymentInstrument: cardinity.Instrument{
			Pan:      card.Pan,
			ExpYear:  card.ExpYear,
			ExpMonth: card.ExpMonth,
			CVC:      card.CVC,
			Holder:   o.HolderName(),
		},
	}

	call := s.invoke(ctx, "create_payment", func(ctx context.Context) (*cardinity.Payment, error) {
		return s.Gateway.CreatePayment(ctx, req)
	})

	state := AuthorizationState{LocalOrderID: o.ID, ExternalOrderID: o.ExternalID}
	var chargeErr error
	switch {
	case call.class == callFailed:
		state.Outcome = OutcomeFailed
		chargeErr = common.NewAppError("PAYMENT_FAILED", call.message, http.StatusBadGateway, nil)
	case call.payment != nil && call.payment.IsApproved():
		state.Outcome = OutcomeApproved
		state.PaymentID = call.payment.ID
	case call.payment != nil && call.payment.IsPending():
		auth := call.payment.AuthorizationInformation
		if auth == nil || auth.URL == "" {
			s.Logger.Error().Str("payment_id", call.payment.ID).Msg("pending payment without authorization information")
			state.Outcome = OutcomeFailed
			state.PaymentID = call.payment.ID
			chargeErr = common.NewAppError("PAYMENT_FAILED", msgRuntimeError, http.StatusBadGateway, nil)
			break
		}
		state.Outcome = OutcomePendingChallenge
		state.PaymentID = call.payment.ID
		state.ChallengeURL = auth.URL
		state.ChallengeData = auth.Data
	default:
		state.Outcome = OutcomeDeclined
		if call.payment != nil {
			state.PaymentID = call.payment.ID
		}
		message := call.message
		if message == "" {
			message = msgDeclined
		}
		chargeErr = common.NewAppError("PAYMENT_DECLINED", message, http.StatusPaymentRequired, nil)
	}

	// A new charge attempt always supersedes stale state, no merge.
	if err := s.States.Save(ctx, sessionID, state); err != nil {
		s.Logger.Error().Err(err).Msg("persist authorization state")
		return state, common.NewAppError("STATE_STORE_ERROR", msgRuntimeError, http.StatusInternalServerError, err)
	}
	span.SetAttributes(attribute.String("payment.outcome", string(state.Outcome)))
	if obs.ChargeTotal != nil {
		obs.ChargeTotal.WithLabelValues(string(state.Outcome)).Inc()
	}

	if state.Outcome == OutcomeApproved {
		if err := s.Flow.MarkPaid(ctx, o, false); err != nil {
			s.Logger.Error().Err(err).Str("order_id", o.ID.String()).Msg("mark order paid")
			return state, common.NewAppError("ORDER_UPDATE_ERROR", msgRuntimeError, http.StatusInternalServerError, err)
		}
	}
	return state, chargeErr
}

// Complete finalizes a pending payment after the shopper returns from the
// ACS. It reports true only when the stored state correlates with the
// callback identifiers and the gateway approves the finalize call; every
// other path cancels the checkout.
func (s *Service) Complete(ctx context.Context, sessionID, externalOrderID, paRes string) bool {
	if s == nil || s.Gateway == nil || s.States == nil {
		return false
	}
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Complete")
	defer span.End()

	state, ok, err := s.States.Load(ctx, sessionID)
	if err != nil {
		s.Logger.Error().Err(err).Msg("load authorization state")
	}
	if !ok {
		// Double delivery or a stray callback; state is already cleared so
		// there is nothing to finalize and nothing to re-notify.
		s.Logger.Warn().Str("md", externalOrderID).Msg("callback without pending authorization")
		s.recordFinalize("no_state")
		return false
	}
	if state.Outcome != OutcomePendingChallenge || state.PaymentID == "" {
		s.cancelCheckout(ctx, sessionID, state)
		s.recordFinalize("not_pending")
		return false
	}

	o, err := s.Orders.GetByID(ctx, state.LocalOrderID)
	if err != nil || o.ID != state.LocalOrderID || o.ExternalID != externalOrderID || state.ExternalOrderID != externalOrderID {
		// Correlation failure: untrusted input, never retried, no detail leaked.
		s.Logger.Warn().Str("md", externalOrderID).Str("expected", state.ExternalOrderID).Msg("callback correlation mismatch")
		s.cancelCheckout(ctx, sessionID, state)
		s.recordFinalize("mismatch")
		return false
	}

	call := s.invoke(ctx, "finalize_payment", func(ctx context.Context) (*cardinity.Payment, error) {
		return s.Gateway.FinalizePayment(ctx, state.PaymentID, paRes)
	})
	if call.class == callOK && call.payment.IsApproved() {
		if err := s.Flow.MarkPaid(ctx, o, true); err != nil {
			s.Logger.Error().Err(err).Str("order_id", o.ID.String()).Msg("mark order paid after finalize")
		}
		if err := s.States.Clear(ctx, sessionID); err != nil {
			s.Logger.Error().Err(err).Msg("clear authorization state")
		}
		s.recordFinalize("approved")
		return true
	}
	s.cancelCheckout(ctx, sessionID, state)
	s.recordFinalize("rejected")
	return false
}

// CancelCheckout aborts the current checkout attempt: the stored state is
// cleared and, when it referenced an order, that order is cancelled.
func (s *Service) CancelCheckout(ctx context.Context, sessionID string) {
	state, ok, err := s.States.Load(ctx, sessionID)
	if err != nil {
		s.Logger.Error().Err(err).Msg("load authorization state")
	}
	if !ok {
		return
	}
	s.cancelCheckout(ctx, sessionID, state)
}

func (s *Service) cancelCheckout(ctx context.Context, sessionID string, state AuthorizationState) {
	if err := s.States.Clear(ctx, sessionID); err != nil {
		s.Logger.Error().Err(err).Msg("clear authorization state")
	}
	if state.LocalOrderID == uuid.Nil {
		return
	}
	o, err := s.Orders.GetByID(ctx, state.LocalOrderID)
	if err != nil {
		if !errors.Is(err, order.ErrNotFound) {
			s.Logger.Error().Err(err).Msg("load order for cancellation")
		}
		return
	}
	if err := s.Flow.Cancel(ctx, o); err != nil {
		s.Logger.Error().Err(err).Str("order_id", o.ID.String()).Msg("cancel order")
	}
}

// RedirectTarget selects the landing route for the shopper based on the
// outcome of the last charge attempt.
func (s *Service) RedirectTarget(state AuthorizationState) string {
	switch state.Outcome {
	case OutcomeApproved:
		return s.Routes.Success
	case OutcomePendingChallenge:
		return s.Routes.Challenge
	default:
		return s.Routes.Failure
	}
}

func (s *Service) recordFinalize(result string) {
	if obs.FinalizeTotal != nil {
		obs.FinalizeTotal.WithLabelValues(result).Inc()
	}
}
