// Package money converts decimal prices into integer minor currency units.
//
// All totals that leave this package are int64 minor units (cents). Rounding
// happens once per line item, before multiplication by quantity, so the sum of
// a cart never drifts with the order of its items.
package money

import (
	"math"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyLines is returned when a total is requested for no line items.
	ErrEmptyLines = errors.New("no line items")
	// ErrInvalidLine is returned for a line with a non-positive quantity, a
	// negative unit price, a unit price above MaxUnitAmount or a subtotal that
	// does not fit in int64.
	ErrInvalidLine = errors.New("invalid line item")
	// ErrAmountTooLarge is returned when a total does not fit in int64.
	ErrAmountTooLarge = errors.New("amount too large")
)

// MaxUnitAmount is the largest unit price in minor units the payment
// provider accepts.
const MaxUnitAmount = 99_999_999

var (
	hundred      = decimal.NewFromInt(100)
	maxUnitMinor = decimal.NewFromInt(MaxUnitAmount)
)

// Line is a unit price in major currency units and a quantity.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// ToMinorUnits converts a major-unit amount to minor units, rounding half
// away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts minor units back to a major-unit decimal with two
// decimal places.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// LineTotal returns round(unitPrice*100) * quantity.
func LineTotal(l Line) (int64, error) {
	if l.Quantity <= 0 || l.UnitPrice.IsNegative() {
		return 0, ErrInvalidLine
	}
	unit := l.UnitPrice.Mul(hundred).Round(0)
	if unit.GreaterThan(maxUnitMinor) {
		return 0, errors.Wrapf(ErrInvalidLine, "unit amount %s exceeds %d", unit, MaxUnitAmount)
	}
	u, qty := unit.IntPart(), int64(l.Quantity)
	if u > 0 && qty > math.MaxInt64/u {
		return 0, errors.Wrapf(ErrInvalidLine, "subtotal of %d x %d overflows", u, qty)
	}
	return u * qty, nil
}

// TotalMinorUnits sums the per-line rounded subtotals.
func TotalMinorUnits(lines []Line) (int64, error) {
	if len(lines) == 0 {
		return 0, ErrEmptyLines
	}

	var total int64
	for i, l := range lines {
		sub, err := LineTotal(l)
		if err != nil {
			return 0, errors.Wrapf(err, "line %d", i)
		}
		if total > math.MaxInt64-sub {
			return 0, errors.Wrapf(ErrAmountTooLarge, "line %d", i)
		}
		total += sub
	}
	return total, nil
}

// PercentOf returns round(amount * percent / 100) in minor units.
func PercentOf(amount int64, percent decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(percent).Div(hundred).Round(0).IntPart()
}
