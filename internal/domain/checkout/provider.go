package checkout

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the provider-reported payment state of a session.
type PaymentStatus string

const (
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

// Paid reports whether the session may be turned into an order. Only an
// explicit "paid" status qualifies.
func (p PaymentStatus) Paid() bool {
	return p == PaymentStatusPaid
}

// SessionLine is one product line on the hosted payment page.
type SessionLine struct {
	Name  string
	Image string
	// UnitAmount is the undiscounted unit price in minor units.
	UnitAmount int64
	Quantity   int
}

// SessionRequest describes a hosted checkout session to create.
type SessionRequest struct {
	Lines []SessionLine
	// DiscountPercent is applied by the provider to the whole session. Zero
	// means no discount.
	DiscountPercent decimal.Decimal
	Metadata        map[string]string
	// ClientReferenceID correlates the session with the buyer.
	ClientReferenceID string
}

// Session is a provider-side checkout session.
type Session struct {
	ID            string
	URL           string
	PaymentStatus PaymentStatus
	// AmountTotal is the amount charged in minor units, after discounts.
	AmountTotal int64
	Metadata    map[string]string
}

// Provider creates and retrieves hosted checkout sessions.
//
// Implementations return an error wrapping ErrProviderUnavailable for
// transport failures and ErrInvalidSession for unknown session IDs.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
}
