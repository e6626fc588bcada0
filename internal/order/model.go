package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status enumerates the order lifecycle states this service transitions.
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusProcessing     Status = "PROCESSING"
	StatusCanceled       Status = "CANCELED"
)

// Order is the host storefront's order as persisted by this service.
type Order struct {
	ID         uuid.UUID
	ExternalID string // human-visible order number echoed to the gateway as order_id
	Status     Status
	Currency   string
	Total      int64 // minor units

	BillingFirstName string
	BillingLastName  string
	BillingCountry   string
	Email            string

	EmailSent bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HolderName concatenates the billing first and last name for the card holder field.
func (o Order) HolderName() string {
	return strings.TrimSpace(o.BillingFirstName + " " + o.BillingLastName)
}

// TotalDecimal renders the order total as a two-digit decimal string, the
// amount format the gateway expects.
func (o Order) TotalDecimal() string {
	return fmt.Sprintf("%d.%02d", o.Total/100, o.Total%100)
}
