package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no order matches the lookup.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateSession is returned by Repository.Create when an order for
	// the same payment session already exists.
	ErrDuplicateSession = errors.New("order for session already exists")
)

// Order is a finalized purchase. Orders are never modified after creation.
type Order struct {
	ID         string
	UserID     string
	Items      []Item
	Total      decimal.Decimal
	SessionID  string
	CouponCode string
	CreatedAt  time.Time
}

// Item is a product snapshot taken when the order was finalized.
type Item struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// New assigns a fresh ID to an order built from a paid session.
func New(userID, sessionID, couponCode string, items []Item, total decimal.Decimal) *Order {
	return &Order{
		ID:         uuid.New().String(),
		UserID:     userID,
		Items:      items,
		Total:      total,
		SessionID:  sessionID,
		CouponCode: couponCode,
	}
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create stores the order and fills CreatedAt. Returns
	// ErrDuplicateSession if the session was already finalized.
	Create(ctx context.Context, o *Order) error
	// GetBySessionID returns the order finalized for a session or ErrNotFound.
	GetBySessionID(ctx context.Context, sessionID string) (*Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}
