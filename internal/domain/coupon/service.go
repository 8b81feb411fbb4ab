package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/money"
)

const maxIssueAttempts = 3

var hundred = decimal.NewFromInt(100)

// Service validates, applies, consumes and issues coupons.
type Service struct {
	repo   Repository
	policy RewardPolicy
	now    func() time.Time
	codes  func() (string, error)
}

// NewService creates a coupon Service backed by the given Repository.
func NewService(repo Repository, policy RewardPolicy) *Service {
	return &Service{
		repo:   repo,
		policy: policy,
		now:    time.Now,
		codes:  randomRewardCode,
	}
}

// Policy returns the reward policy the service was built with.
func (s *Service) Policy() RewardPolicy {
	return s.policy
}

// Validate returns the usable coupon with the given code owned by userID.
// Every failure reason is reported as ErrNotFound so callers cannot enumerate
// whether a code exists for another user.
func (s *Service) Validate(ctx context.Context, code, userID string) (*Coupon, error) {
	code = NormalizeCode(code)
	if code == "" || userID == "" {
		return nil, ErrNotFound
	}

	c, err := s.repo.FindActive(ctx, code, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "find coupon")
	}

	if c.UserID != userID || !c.Usable(s.now()) {
		return nil, ErrNotFound
	}
	return c, nil
}

// ApplyDiscount returns total minus round(total * discount / 100), never
// below zero. Discounts outside 0..100 are clamped.
func (s *Service) ApplyDiscount(total int64, c *Coupon) int64 {
	if c == nil {
		return total
	}
	pct := c.Discount
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		pct = hundred
	}

	adjusted := total - money.PercentOf(total, pct)
	if adjusted < 0 {
		return 0
	}
	return adjusted
}

// Deactivate consumes the coupon. It reports whether this call flipped the
// coupon; an already inactive or missing coupon yields false and no error.
func (s *Service) Deactivate(ctx context.Context, code, userID string) (bool, error) {
	code = NormalizeCode(code)
	if code == "" || userID == "" {
		return false, nil
	}

	changed, err := s.repo.Deactivate(ctx, code, userID)
	if err != nil {
		return false, errors.Wrap(err, "deactivate coupon")
	}
	return changed, nil
}

// IssueIfEligible creates a reward coupon for userID when adjustedTotal
// exceeds the policy threshold. It returns nil when the order is not
// eligible.
func (s *Service) IssueIfEligible(ctx context.Context, userID string, adjustedTotal int64) (*Coupon, error) {
	if userID == "" || adjustedTotal <= s.policy.Threshold {
		return nil, nil
	}

	now := s.now()
	for attempt := 1; ; attempt++ {
		code, err := s.codes()
		if err != nil {
			return nil, errors.Wrap(err, "generate code")
		}

		c := &Coupon{
			Code:      code,
			UserID:    userID,
			Discount:  s.policy.Percent,
			Active:    true,
			ExpiresAt: now.Add(s.policy.Lifetime),
			CreatedAt: now,
		}
		err = s.repo.Create(ctx, c)
		if err == nil {
			zctx.From(ctx).Info("Reward coupon issued",
				zap.String("user_id", userID),
				zap.String("code", c.Code),
				zap.Int64("adjusted_total", adjustedTotal),
			)
			return c, nil
		}
		if !errors.Is(err, ErrDuplicateCode) || attempt >= maxIssueAttempts {
			return nil, errors.Wrap(err, "create reward coupon")
		}
	}
}

// ListActive returns the user's coupons that are currently usable.
func (s *Service) ListActive(ctx context.Context, userID string) ([]Coupon, error) {
	all, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}

	now := s.now()
	usable := all[:0]
	for _, c := range all {
		if c.Usable(now) {
			usable = append(usable, c)
		}
	}
	return usable, nil
}
