// Package checkout turns carts into hosted payment sessions and paid
// sessions into orders.
package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/order"
)

const instrumentationName = "github.com/xenking/storefront-checkout/internal/domain/checkout"

// CouponService is the subset of coupon.Service used by checkout.
type CouponService interface {
	Validate(ctx context.Context, code, userID string) (*coupon.Coupon, error)
	ApplyDiscount(total int64, c *coupon.Coupon) int64
	Deactivate(ctx context.Context, code, userID string) (bool, error)
	IssueIfEligible(ctx context.Context, userID string, adjustedTotal int64) (*coupon.Coupon, error)
}

var _ CouponService = (*coupon.Service)(nil)

// RewardTiming selects when loyalty coupons are issued.
type RewardTiming string

const (
	// RewardOnBuild issues the reward when the session is built, before
	// payment.
	RewardOnBuild RewardTiming = "build"
	// RewardOnConfirm issues the reward when the order is finalized.
	RewardOnConfirm RewardTiming = "confirm"
)

// Options configures optional collaborators of Service.
type Options struct {
	Locker         Locker
	Publisher      Publisher
	RewardOn       RewardTiming
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

func (o *Options) setDefaults() {
	if o.Locker == nil {
		o.Locker = NopLocker{}
	}
	if o.Publisher == nil {
		o.Publisher = NopPublisher{}
	}
	if o.RewardOn == "" {
		o.RewardOn = RewardOnBuild
	}
	if o.MeterProvider == nil {
		o.MeterProvider = noop.NewMeterProvider()
	}
	if o.TracerProvider == nil {
		o.TracerProvider = tracenoop.NewTracerProvider()
	}
}

// Service orchestrates session building and confirmation.
type Service struct {
	coupons  CouponService
	carts    cart.Repository
	orders   order.Repository
	provider Provider
	locker   Locker
	events   Publisher
	rewardOn RewardTiming

	tracer          trace.Tracer
	sessionsBuilt   metric.Int64Counter
	ordersFinalized metric.Int64Counter
	rewardsIssued   metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(
	coupons CouponService,
	carts cart.Repository,
	orders order.Repository,
	provider Provider,
	opts Options,
) (*Service, error) {
	opts.setDefaults()
	switch opts.RewardOn {
	case RewardOnBuild, RewardOnConfirm:
	default:
		return nil, errors.Errorf("unknown reward timing %q", opts.RewardOn)
	}

	meter := opts.MeterProvider.Meter(instrumentationName)
	s := &Service{
		coupons:  coupons,
		carts:    carts,
		orders:   orders,
		provider: provider,
		locker:   opts.Locker,
		events:   opts.Publisher,
		rewardOn: opts.RewardOn,
		tracer:   opts.TracerProvider.Tracer(instrumentationName),
	}

	var err error
	if s.sessionsBuilt, err = meter.Int64Counter("checkout.sessions.built",
		metric.WithDescription("Checkout sessions created at the payment provider"),
	); err != nil {
		return nil, errors.Wrap(err, "sessions counter")
	}
	if s.ordersFinalized, err = meter.Int64Counter("checkout.orders.finalized",
		metric.WithDescription("Orders created from paid sessions"),
	); err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	if s.rewardsIssued, err = meter.Int64Counter("checkout.rewards.issued",
		metric.WithDescription("Loyalty coupons issued"),
	); err != nil {
		return nil, errors.Wrap(err, "rewards counter")
	}
	return s, nil
}
