// Package cart describes the items a user intends to buy.
package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/money"
)

// ErrNotFound is returned when the user has no stored cart.
var ErrNotFound = errors.New("cart not found")

// LineItem is a single product entry in a cart.
type LineItem struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// InvalidItemError indicates a malformed line item.
type InvalidItemError struct {
	Index  int
	Reason string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("item %d: %s", e.Index, e.Reason)
}

// Validate checks that every item has a product ID, a positive quantity and a
// non-negative price.
func Validate(items []LineItem) error {
	if len(items) == 0 {
		return money.ErrEmptyLines
	}
	for i, it := range items {
		switch {
		case it.ProductID == "":
			return &InvalidItemError{Index: i, Reason: "missing product id"}
		case it.Quantity <= 0:
			return &InvalidItemError{Index: i, Reason: "quantity must be greater than 0"}
		case it.Price.IsNegative():
			return &InvalidItemError{Index: i, Reason: "price must not be negative"}
		}
	}
	return nil
}

// Lines converts items into calculator lines.
func Lines(items []LineItem) []money.Line {
	lines := make([]money.Line, len(items))
	for i, it := range items {
		lines[i] = money.Line{UnitPrice: it.Price, Quantity: it.Quantity}
	}
	return lines
}

// Repository reads stored user carts.
type Repository interface {
	// FindUserCart returns the user's cart items or ErrNotFound.
	FindUserCart(ctx context.Context, userID string) ([]LineItem, error)
}
