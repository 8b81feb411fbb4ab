package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/money"
)

var hundred = decimal.NewFromInt(100)

// BuildRequest holds the input for building a checkout session.
type BuildRequest struct {
	UserID string
	Items  []cart.LineItem
	// FromStoredCart loads the items from the user's stored cart instead of
	// Items.
	FromStoredCart bool
	CouponCode     string
}

// SessionResult is the outcome of a successfully built session.
type SessionResult struct {
	SessionID   string
	RedirectURL string
	// NewCouponCode is set when a reward coupon was issued.
	NewCouponCode string
	// AdjustedTotal is the discounted total in minor units.
	AdjustedTotal int64
}

// BuildSession prices the cart, applies an optional coupon and creates a
// hosted payment session. No order is created.
func (s *Service) BuildSession(ctx context.Context, req BuildRequest) (_ *SessionResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.BuildSession")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()
	lg := zctx.From(ctx)

	if req.UserID == "" {
		return nil, errors.Wrap(ErrInvalidCart, "missing user")
	}

	items := req.Items
	if req.FromStoredCart {
		stored, err := s.carts.FindUserCart(ctx, req.UserID)
		switch {
		case errors.Is(err, cart.ErrNotFound):
			return nil, errors.Wrap(ErrInvalidCart, "no stored cart")
		case err != nil:
			return nil, errors.Wrap(err, "load cart")
		}
		items = stored
	}

	if err := cart.Validate(items); err != nil {
		return nil, errors.Wrap(ErrInvalidCart, err.Error())
	}
	total, err := money.TotalMinorUnits(cart.Lines(items))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidCart, err.Error())
	}

	adjusted := total
	discount := decimal.Zero
	code := coupon.NormalizeCode(req.CouponCode)
	if code != "" {
		c, err := s.coupons.Validate(ctx, code, req.UserID)
		switch {
		case errors.Is(err, coupon.ErrNotFound):
			return nil, ErrInvalidCoupon
		case err != nil:
			return nil, errors.Wrap(err, "validate coupon")
		}
		adjusted = s.coupons.ApplyDiscount(total, c)
		discount = clampPercent(c.Discount)
	}

	lines := make([]SessionLine, len(items))
	for i, it := range items {
		lines[i] = SessionLine{
			Name:       it.Name,
			Image:      it.Image,
			UnitAmount: money.ToMinorUnits(it.Price),
			Quantity:   it.Quantity,
		}
	}

	md, err := newPendingCheckout(req.UserID, code, items).Metadata()
	if err != nil {
		return nil, err
	}

	sess, err := s.provider.CreateSession(ctx, SessionRequest{
		Lines:             lines,
		DiscountPercent:   discount,
		Metadata:          md,
		ClientReferenceID: req.UserID,
	})
	if err != nil {
		return nil, providerFailure(err, "create session")
	}
	s.sessionsBuilt.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("coupon", code != ""),
	))

	res := &SessionResult{
		SessionID:     sess.ID,
		RedirectURL:   sess.URL,
		AdjustedTotal: adjusted,
	}
	if s.rewardOn == RewardOnBuild {
		res.NewCouponCode = s.issueReward(ctx, req.UserID, adjusted)
	}

	lg.Info("Checkout session created",
		zap.String("session_id", sess.ID),
		zap.String("user_id", req.UserID),
		zap.Int64("total", total),
		zap.Int64("adjusted_total", adjusted),
		zap.String("coupon", code),
	)
	return res, nil
}

// issueReward returns the code of the issued reward coupon, or "" when none
// was issued. Failures are logged only.
func (s *Service) issueReward(ctx context.Context, userID string, adjustedTotal int64) string {
	c, err := s.coupons.IssueIfEligible(ctx, userID, adjustedTotal)
	if err != nil {
		zctx.From(ctx).Warn("Failed to issue reward coupon",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return ""
	}
	if c == nil {
		return ""
	}
	s.rewardsIssued.Add(ctx, 1)
	return c.Code
}

func clampPercent(d decimal.Decimal) decimal.Decimal {
	switch {
	case d.IsNegative():
		return decimal.Zero
	case d.GreaterThan(hundred):
		return hundred
	default:
		return d
	}
}

// providerFailure keeps the typed errors of the adapter and maps anything
// else to ErrProviderUnavailable.
func providerFailure(err error, op string) error {
	if errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrInvalidSession) ||
		errors.Is(err, ErrProviderRejected) {
		return errors.Wrap(err, op)
	}
	return errors.Wrapf(ErrProviderUnavailable, "%s: %s", op, err)
}
