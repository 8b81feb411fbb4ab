package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no usable coupon matches a code and owner.
	// Unknown, foreign, inactive and expired coupons all map to it.
	ErrNotFound = errors.New("coupon not found")
	// ErrDuplicateCode is returned by Repository.Create when the owner
	// already holds a coupon with the same code.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

// Coupon is a percentage discount owned by a single user.
type Coupon struct {
	Code      string
	UserID    string
	Discount  decimal.Decimal
	Active    bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Usable reports whether the coupon can be applied at the given moment.
// A zero ExpiresAt means the coupon never expires.
func (c *Coupon) Usable(now time.Time) bool {
	if !c.Active {
		return false
	}
	return c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt)
}

// Repository provides coupon persistence.
type Repository interface {
	// FindActive returns the active coupon with the given code owned by
	// userID, or ErrNotFound.
	FindActive(ctx context.Context, code, userID string) (*Coupon, error)
	// Create stores a new coupon. Returns ErrDuplicateCode on conflict.
	Create(ctx context.Context, c *Coupon) error
	// Deactivate flips the coupon to inactive only if it is currently
	// active, reporting whether a row was changed.
	Deactivate(ctx context.Context, code, userID string) (bool, error)
	// ListActive returns all active coupons of a user.
	ListActive(ctx context.Context, userID string) ([]Coupon, error)
}

// RewardPolicy controls loyalty coupon issuance for large orders.
type RewardPolicy struct {
	// Threshold is the adjusted total in minor units that must be exceeded.
	Threshold int64
	// Percent is the discount of the issued coupon.
	Percent decimal.Decimal
	// Lifetime is how long the issued coupon stays valid.
	Lifetime time.Duration
}

// DefaultRewardPolicy issues a 10% coupon valid for 30 days for orders above
// 200.00.
func DefaultRewardPolicy() RewardPolicy {
	return RewardPolicy{
		Threshold: 20000,
		Percent:   decimal.NewFromInt(10),
		Lifetime:  30 * 24 * time.Hour,
	}
}
