package payment_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cardinity-gateway/internal/cardinity"
	"github.com/noah-isme/cardinity-gateway/internal/common"
	"github.com/noah-isme/cardinity-gateway/internal/order"
	"github.com/noah-isme/cardinity-gateway/internal/payment"
)

type stubGateway struct {
	createResult  *cardinity.Payment
	createErr     error
	createCalls   int
	lastCreate    cardinity.CreatePaymentRequest
	finalizeRes   *cardinity.Payment
	finalizeErr   error
	finalizeCalls int
	lastPaymentID string
	lastPaRes     string
}

func (g *stubGateway) CreatePayment(_ context.Context, req cardinity.CreatePaymentRequest) (*cardinity.Payment, error) {
	g.createCalls++
	g.lastCreate = req
	return g.createResult, g.createErr
}

func (g *stubGateway) FinalizePayment(_ context.Context, paymentID, authorizeData string) (*cardinity.Payment, error) {
	g.finalizeCalls++
	g.lastPaymentID = paymentID
	g.lastPaRes = authorizeData
	return g.finalizeRes, g.finalizeErr
}

// orderStub implements order.Store around a single order, recording writes.
type orderStub struct {
	order         order.Order
	statusUpdates []order.Status
	emailSent     int
	auditNotes    []string
}

func (s *orderStub) GetByID(_ context.Context, id uuid.UUID) (order.Order, error) {
	if id != s.order.ID {
		return order.Order{}, order.ErrNotFound
	}
	return s.order, nil
}

func (s *orderStub) GetByExternalID(_ context.Context, externalID string) (order.Order, error) {
	if externalID != s.order.ExternalID {
		return order.Order{}, order.ErrNotFound
	}
	return s.order, nil
}

func (s *orderStub) UpdateStatus(_ context.Context, _ uuid.UUID, status order.Status) error {
	s.statusUpdates = append(s.statusUpdates, status)
	s.order.Status = status
	return nil
}

func (s *orderStub) SetEmailSent(context.Context, uuid.UUID, bool) error {
	s.emailSent++
	s.order.EmailSent = true
	return nil
}

func (s *orderStub) InsertOrderEvent(_ context.Context, _ uuid.UUID, _ order.Status, note string) error {
	s.auditNotes = append(s.auditNotes, note)
	return nil
}

func testOrder() order.Order {
	return order.Order{
		ID:               uuid.New(),
		ExternalID:       "100000123",
		Status:           order.StatusPendingPayment,
		Currency:         "EUR",
		Total:            2500,
		BillingFirstName: "John",
		BillingLastName:  "Doe",
		BillingCountry:   "LT",
		Email:            "shopper@example.com",
	}
}

func testCard() payment.Card {
	return payment.Card{Pan: "4111111111111111", ExpMonth: 12, ExpYear: 2030, CVC: "123"}
}

func newService(t *testing.T, gw *stubGateway, orders *orderStub) *payment.Service {
	t.Helper()
	states, _ := newStateStore(t)
	return &payment.Service{
		Gateway:   gw,
		States:    states,
		Orders:    orders,
		Flow:      &order.Service{Store: orders},
		Currency:  "EUR",
		MinAmount: 50,
		Routes: payment.Routes{
			Success:   "/checkout/success",
			Failure:   "/checkout/failure",
			Challenge: "/v1/checkout/3ds",
		},
	}
}

const sess = "sess-1"

func TestChargeRejectsBelowMinimumBeforeGatewayContact(t *testing.T) {
	gw := &stubGateway{}
	orders := &orderStub{order: testOrder()}
	orders.order.Total = 49
	svc := newService(t, gw, orders)

	_, err := svc.Charge(context.Background(), sess, orders.order, testCard())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_AMOUNT", appErr.Code)
	require.Zero(t, gw.createCalls, "gateway must not be contacted")
}

func TestChargeRejectsMissingBillingAddress(t *testing.T) {
	gw := &stubGateway{}
	orders := &orderStub{order: testOrder()}
	orders.order.BillingCountry = ""
	svc := newService(t, gw, orders)

	_, err := svc.Charge(context.Background(), sess, orders.order, testCard())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BILLING_ADDRESS_REQUIRED", appErr.Code)
	require.Zero(t, gw.createCalls)
}

func TestChargeApprovedMarksPaidImmediately(t *testing.T) {
	gw := &stubGateway{createResult: &cardinity.Payment{ID: "pay-1", Status: cardinity.StatusApproved}}
	orders := &orderStub{order: testOrder()}
	svc := newService(t, gw, orders)

	state, err := svc.Charge(context.Background(), sess, orders.order, testCard())
	require.NoError(t, err)
	require.Equal(t, payment.OutcomeApproved, state.Outcome)
	require.Equal(t, "pay-1", state.PaymentID)

	require.Equal(t, []order.Status{order.StatusProcessing}, orders.statusUpdates)
	require.Equal(t, 1, orders.emailSent)
	require.Contains(t, orders.auditNotes[0], "without 3-D security")
	require.Equal(t, "/checkout/success", svc.RedirectTarget(state))

	require.Equal(t, "25.00", gw.lastCreate.Amount)
	require.Equal(t, "EUR", gw.lastCreate.Currency)
	require.Equal(t, "John Doe", gw.lastCreate.PaymentInstrument.Holder)
	require.True(t, gw.lastCreate.Settle)
}

func TestChargePendingRecordsChallenge(t *testing.T) {
	gw := &stubGateway{createResult: &cardinity.Payment{
		ID:     "pay-2",
		Status: cardinity.StatusPending,
		AuthorizationInformation: &cardinity.AuthorizationInformation{
			URL:  "https://acs.example/3ds",
			Data: "token123",
		},
	}}
	orders := &orderStub{order: testOrder()}
	svc := newService(t, gw, orders)

	state, err := svc.Charge(context.Background(), sess, orders.order, testCard())
	require.NoError(t, err)
	require.Equal(t, payment.OutcomePendingChallenge, state.Outcome)
	require.Equal(t, "https://acs.example/3ds", state.ChallengeURL)
	require.Equal(t, "token123", state.ChallengeData)
	require.Equal(t, "/v1/checkout/3ds", svc.RedirectTarget(state))

	require.Empty(t, orders.statusUpdates, "order stays pending until the callback")

	stored, ok, err := svc.States.Load(context.Background(), sess)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, state, stored)
}

func TestChargeDeclinedKeepsPaymentID(t *testing.T) {
	gw := &stubGateway{createErr: &cardinity.DeclinedError{Payment: &cardinity.Payment{
		ID:     "pay-3",
		Status: cardinity.StatusDeclined,
		Error:  "insufficient funds",
	}}}
	orders := &orderStub{order: testOrder()}
	svc := newService(t, gw, orders)

	state, err := svc.Charge(context.Background(), sess, orders.order, testCard())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "PAYMENT_DECLINED", appErr.Code)

	require.Equal(t, payment.OutcomeDeclined, state.Outcome)
	require.Equal(t, "pay-3", state.PaymentID, "gateway-issued id retained on decline")
	require.Empty(t, orders.statusUpdates, "no order state change on decline")
	require.Equal(t, "/checkout/failure", svc.RedirectTarget(state))
}

func TestChargeTransportFailure(t *testing.T) {
	gw := &stubGateway{createErr: &cardinity.RuntimeError{Status: 503}}
	orders := &orderStub{order: testOrder()}
	svc := newService(t, gw, orders)

	state, err := svc.Charge(context.Background(), sess, orders.order, testCard())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "PAYMENT_FAILED", appErr.Code)
	require.Equal(t, payment.OutcomeFailed, state.Outcome)
	require.Empty(t, state.PaymentID)
}

func TestChargeSupersedesStaleState(t *testing.T) {
	gw := &stubGateway{createResult: &cardinity.Payment{
		ID:     "pay-new",
		Status: cardinity.StatusPending,
		AuthorizationInformation: &cardinity.AuthorizationInformation{
			URL: "https://acs.example/3ds", Data: "fresh",
		},
	}}
	orders := &orderStub{order: testOrder()}
	svc := newService(t, gw, orders)

	require.NoError(t, svc.States.Save(context.Background(), sess, payment.AuthorizationState{
		PaymentID: "pay-old",
		Outcome:   payment.OutcomeDeclined,
	}))

	state, err := svc.Charge(context.Background(), sess, orders.order, testCard())
	require.NoError(t, err)
	require.Equal(t, "pay-new", state.PaymentID)

	stored, ok, _ := svc.States.Load(context.Background(), sess)
	require.True(t, ok)
	require.Equal(t, "pay-new", stored.PaymentID)
}

func chargePending(t *testing.T, svc *payment.Service, orders *orderStub, gw *stubGateway) {
	t.Helper()
	gw.createResult = &cardinity.Payment{
		ID:     "pay-2",
		Status: cardinity.StatusPending,
		AuthorizationInformation: &cardinity.AuthorizationInformation{
			URL: "https://acs.example/3ds", Data: "token123",
		},
	}
	_, err := svc.Charge(context.Background(), sess, orders.order, testCard())
	require.NoError(t, err)
}

func TestCompleteApprovedFinalizeMarksPaidAndClearsState(t *testing.T) {
	gw := &stubGateway{finalizeRes: &cardinity.Payment{ID: "pay-2", Status: cardinity.StatusApproved}}
	orders := &orderStub{order: testOrder()}
	svc := newService(t, gw, orders)
	chargePending(t, svc, orders, gw)

	ok := svc.Complete(context.Background(), sess, orders.order.ExternalID, "pares-token")
	require.True(t, ok)
	require.Equal(t, "pay-2", gw.lastPaymentID)
	require.Equal(t, "pares-token", gw.lastPaRes)

	require.Equal(t, []order.Status{order.StatusProcessing}, orders.statusUpdates)
	require.Contains(t, orders.auditNotes[0], "3-D security step succeeded")

	_, present, err := svc.States.Load(context.Background(), sess)
	require.NoError(t, err)
	require.False(t, present, "state cleared on finalized checkout")
}

func TestCompleteMismatchedIdentifiersCancels(t *testing.T) {
	gw := &stubGateway{finalizeRes: &cardinity.Payment{ID: "pay-2", Status: cardinity.StatusApproved}}
	orders := &orderStub{order: testOrder()}
	svc := newService(t, gw, orders)
	chargePending(t, svc, orders, gw)

	ok := svc.Complete(context.Background(), sess, "someone-elses-order", "pares-token")
	require.False(t, ok)
	require.Zero(t, gw.finalizeCalls, "finalize must not run on mismatch")
	require.Equal(t, []order.Status{order.StatusCanceled}, orders.statusUpdates)

	_, present, _ := svc.States.Load(context.Background(), sess)
	require.False(t, present)
}

func TestCompleteFailedFinalizeCancels(t *testing.T) {
	gw := &stubGateway{finalizeErr: &cardinity.DeclinedError{Payment: &cardinity.Payment{ID: "pay-2", Error: "3ds failed"}}}
	orders := &orderStub{order: testOrder()}
	svc := newService(t, gw, orders)
	chargePending(t, svc, orders, gw)

	ok := svc.Complete(context.Background(), sess, orders.order.ExternalID, "pares-token")
	require.False(t, ok)
	require.Equal(t, 1, gw.finalizeCalls)
	require.Equal(t, []order.Status{order.StatusCanceled}, orders.statusUpdates)
}

func TestCompleteDoubleCallbackResolvesToCancellationOnce(t *testing.T) {
	gw := &stubGateway{finalizeRes: &cardinity.Payment{ID: "pay-2", Status: cardinity.StatusApproved}}
	orders := &orderStub{order: testOrder()}
	svc := newService(t, gw, orders)
	chargePending(t, svc, orders, gw)

	require.True(t, svc.Complete(context.Background(), sess, orders.order.ExternalID, "pares-token"))
	statusAfterFirst := append([]order.Status(nil), orders.statusUpdates...)
	emailsAfterFirst := orders.emailSent

	// The ACS redirected twice; the state is already cleared.
	require.False(t, svc.Complete(context.Background(), sess, orders.order.ExternalID, "pares-token"))
	require.Equal(t, 1, gw.finalizeCalls, "no re-finalize on replay")
	require.Equal(t, statusAfterFirst, orders.statusUpdates, "no second order transition")
	require.Equal(t, emailsAfterFirst, orders.emailSent, "no duplicate confirmation")
}

func TestCancelCheckoutWithoutStateIsIdle(t *testing.T) {
	gw := &stubGateway{}
	orders := &orderStub{order: testOrder()}
	svc := newService(t, gw, orders)

	svc.CancelCheckout(context.Background(), sess)
	require.Empty(t, orders.statusUpdates)
}

func TestCancelCheckoutCancelsReferencedOrder(t *testing.T) {
	gw := &stubGateway{}
	orders := &orderStub{order: testOrder()}
	svc := newService(t, gw, orders)
	chargePending(t, svc, orders, gw)

	svc.CancelCheckout(context.Background(), sess)
	require.Equal(t, []order.Status{order.StatusCanceled}, orders.statusUpdates)

	_, present, _ := svc.States.Load(context.Background(), sess)
	require.False(t, present)
}
