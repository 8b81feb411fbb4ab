package checkout

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/money"
)

// ConfirmResult is the outcome of confirming a session.
type ConfirmResult struct {
	Order *order.Order
	// AlreadyFinalized is true when the order existed before this call.
	AlreadyFinalized bool
	// NewCouponCode is set when a reward coupon was issued on confirmation.
	NewCouponCode string
}

// Confirm creates the order for a paid session owned by userID. Repeated
// calls for the same session return the existing order. A session built for
// another user is reported as ErrInvalidSession.
func (s *Service) Confirm(ctx context.Context, userID, sessionID string) (_ *ConfirmResult, rerr error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || userID == "" {
		return nil, ErrInvalidSession
	}

	ctx, span := s.tracer.Start(ctx, "checkout.Confirm",
		trace.WithAttributes(attribute.String("checkout.session_id", sessionID)),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()
	lg := zctx.From(ctx).With(zap.String("session_id", sessionID))

	if res, err := s.finalized(ctx, userID, sessionID); res != nil || err != nil {
		return res, err
	}

	unlock, err := s.locker.Lock(ctx, confirmLockKey(sessionID))
	if err != nil {
		if !errors.Is(err, ErrLockHeld) {
			return nil, errors.Wrap(err, "acquire confirmation lock")
		}
		if res, err := s.finalized(ctx, userID, sessionID); res != nil || err != nil {
			return res, err
		}
		return nil, ErrConfirmationInProgress
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			lg.Warn("Failed to release confirmation lock", zap.Error(err))
		}
	}()

	// The previous holder may have finished between the first check and Lock.
	if res, err := s.finalized(ctx, userID, sessionID); res != nil || err != nil {
		return res, err
	}

	sess, err := s.provider.GetSession(ctx, sessionID)
	if err != nil {
		return nil, providerFailure(err, "get session")
	}
	if state := StateOf(sess, false); !state.CanConfirm() {
		return nil, errors.Wrapf(ErrPaymentNotCompleted, "payment status %q", sess.PaymentStatus)
	}

	pending, err := ParsePendingCheckout(sess.Metadata)
	if err != nil {
		return nil, err
	}
	if pending.UserID != userID {
		return nil, errors.Wrap(ErrInvalidSession, "session belongs to another user")
	}

	if pending.CouponCode != "" {
		changed, err := s.coupons.Deactivate(ctx, pending.CouponCode, pending.UserID)
		switch {
		case err != nil:
			lg.Warn("Failed to deactivate coupon",
				zap.String("coupon", pending.CouponCode),
				zap.Error(err),
			)
		case !changed:
			lg.Info("Coupon was already inactive", zap.String("coupon", pending.CouponCode))
		}
	}

	o := order.New(pending.UserID, sessionID, pending.CouponCode, pending.OrderItems(),
		money.FromMinorUnits(sess.AmountTotal))
	if err := s.orders.Create(ctx, o); err != nil {
		if !errors.Is(err, order.ErrDuplicateSession) {
			return nil, errors.Wrap(err, "create order")
		}
		existing, err := s.orders.GetBySessionID(ctx, sessionID)
		if err != nil {
			return nil, errors.Wrap(err, "get existing order")
		}
		return &ConfirmResult{Order: existing, AlreadyFinalized: true}, nil
	}
	s.ordersFinalized.Add(ctx, 1)

	if err := s.events.PublishOrderCreated(ctx, o); err != nil {
		lg.Warn("Failed to publish order event", zap.String("order_id", o.ID), zap.Error(err))
	}

	res := &ConfirmResult{Order: o}
	if s.rewardOn == RewardOnConfirm {
		res.NewCouponCode = s.issueReward(ctx, pending.UserID, sess.AmountTotal)
	}

	lg.Info("Order finalized",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return res, nil
}

// finalized returns the existing order for the session, or nil when there
// is none yet.
func (s *Service) finalized(ctx context.Context, userID, sessionID string) (*ConfirmResult, error) {
	o, err := s.orders.GetBySessionID(ctx, sessionID)
	switch {
	case errors.Is(err, order.ErrNotFound):
		o = nil
	case err != nil:
		return nil, errors.Wrap(err, "get order")
	}
	if !StateOf(nil, o != nil).IsTerminal() {
		return nil, nil
	}
	if o.UserID != userID {
		return nil, errors.Wrap(ErrInvalidSession, "session belongs to another user")
	}
	return &ConfirmResult{Order: o, AlreadyFinalized: true}, nil
}
