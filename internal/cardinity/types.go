package cardinity

// Payment statuses returned by the gateway.
const (
	StatusApproved = "approved"
	StatusPending  = "pending"
	StatusDeclined = "declined"
)

// PaymentMethodCard is the only payment method this integration submits.
const PaymentMethodCard = "card"

// Instrument carries the card details for a single charge attempt. It is
// never persisted; construct it fresh per attempt and let it go out of scope.
type Instrument struct {
	Pan      string `json:"pan"`
	ExpYear  int    `json:"exp_year"`
	ExpMonth int    `json:"exp_month"`
	CVC      string `json:"cvc"`
	Holder   string `json:"holder"`
}

// CreatePaymentRequest is the wire shape of a charge submission.
type CreatePaymentRequest struct {
	Amount            string     `json:"amount"`
	Currency          string     `json:"currency"`
	Settle            bool       `json:"settle"`
	OrderID           string     `json:"order_id"`
	Country           string     `json:"country"`
	PaymentMethod     string     `json:"payment_method"`
	PaymentInstrument Instrument `json:"payment_instrument"`
}

// AuthorizationInformation holds the ACS endpoint and payload for the
// 3-D Secure challenge when a payment comes back pending.
type AuthorizationInformation struct {
	URL  string `json:"url"`
	Data string `json:"data"`
}

// Payment is the gateway's representation of a charge.
type Payment struct {
	ID                       string                    `json:"id"`
	Amount                   string                    `json:"amount"`
	Currency                 string                    `json:"currency"`
	Status                   string                    `json:"status"`
	OrderID                  string                    `json:"order_id"`
	Error                    string                    `json:"error,omitempty"`
	AuthorizationInformation *AuthorizationInformation `json:"authorization_information,omitempty"`
}

// IsApproved reports whether the payment settled.
func (p *Payment) IsApproved() bool {
	return p != nil && p.Status == StatusApproved
}

// IsPending reports whether the payment awaits 3-D Secure completion.
func (p *Payment) IsPending() bool {
	return p != nil && p.Status == StatusPending
}

type finalizeRequest struct {
	AuthorizeData string `json:"authorize_data"`
}
