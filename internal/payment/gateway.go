package payment

import (
	"context"
	"errors"

	"github.com/noah-isme/cardinity-gateway/internal/cardinity"
)

// Gateway abstracts the vendored Cardinity client so the flow can be
// exercised against stubs in tests.
type Gateway interface {
	CreatePayment(ctx context.Context, req cardinity.CreatePaymentRequest) (*cardinity.Payment, error)
	FinalizePayment(ctx context.Context, paymentID, authorizeData string) (*cardinity.Payment, error)
}

// User-facing messages for the three gateway error categories. The raw cause
// is always logged before translation; shoppers only ever see these.
const (
	msgDeclined      = "Your request was valid but it was declined."
	msgRequestFailed = "Request failed. Please contact support."
	msgRuntimeError  = "Internal error occurred. Please contact support."
)

type callClass int

const (
	callOK callClass = iota
	callDeclined
	callFailed
)

// gatewayCall is the classified result of one outbound gateway call. On a
// decline the partial payment object is retained so the caller can still
// record the gateway-issued payment identifier.
type gatewayCall struct {
	payment *cardinity.Payment
	class   callClass
	message string
}

// invoke wraps an outbound call in structured error translation so the
// initiator and the completion handler share identical failure vocabulary.
func (s *Service) invoke(ctx context.Context, op string, fn func(context.Context) (*cardinity.Payment, error)) gatewayCall {
	payment, err := fn(ctx)
	if err == nil {
		return gatewayCall{payment: payment, class: callOK}
	}

	var declined *cardinity.DeclinedError
	var reqErr *cardinity.RequestError
	var rtErr *cardinity.RuntimeError
	switch {
	case errors.As(err, &declined):
		evt := s.Logger.Warn().Str("op", op).Str("category", "declined")
		if declined.Payment != nil {
			evt = evt.Str("payment_id", declined.Payment.ID).Str("reason", declined.Payment.Error)
		}
		evt.Msg("gateway declined payment")
		return gatewayCall{payment: declined.Payment, class: callDeclined, message: msgDeclined}
	case errors.As(err, &reqErr):
		s.Logger.Error().Str("op", op).Str("category", "request").
			Int("status", reqErr.Status).
			Strs("gateway_errors", reqErr.ErrorList()).
			Err(err).
			Msg("gateway request failed")
		return gatewayCall{class: callFailed, message: msgRequestFailed}
	case errors.As(err, &rtErr):
		evt := s.Logger.Error().Str("op", op).Str("category", "runtime").Int("status", rtErr.Status).Err(err)
		if cause := errors.Unwrap(err); cause != nil {
			evt = evt.Str("cause", cause.Error())
		}
		evt.Msg("gateway runtime error")
		return gatewayCall{class: callFailed, message: msgRuntimeError}
	default:
		s.Logger.Error().Str("op", op).Str("category", "unknown").Err(err).Msg("gateway call failed")
		return gatewayCall{class: callFailed, message: msgRuntimeError}
	}
}
