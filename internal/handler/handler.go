// Package handler implements the storefront checkout HTTP API.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/order"
)

// Checkout is the checkout orchestrator used by the payment routes.
type Checkout interface {
	BuildSession(ctx context.Context, req checkout.BuildRequest) (*checkout.SessionResult, error)
	Confirm(ctx context.Context, userID, sessionID string) (*checkout.ConfirmResult, error)
}

// CouponLister lists a user's usable coupons.
type CouponLister interface {
	ListActive(ctx context.Context, userID string) ([]coupon.Coupon, error)
}

// OrderLister lists a user's orders.
type OrderLister interface {
	ListByUser(ctx context.Context, userID string) ([]order.Order, error)
}

var (
	_ Checkout     = (*checkout.Service)(nil)
	_ CouponLister = (*coupon.Service)(nil)
)

// Handler serves the /api routes. Every route expects the user ID placed on
// the request context by auth.Middleware.
type Handler struct {
	checkout Checkout
	coupons  CouponLister
	orders   OrderLister
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(co Checkout, coupons CouponLister, orders OrderLister) *Handler {
	return &Handler{
		checkout: co,
		coupons:  coupons,
		orders:   orders,
	}
}

// Routes registers the API routes on r. sessionLimit wraps only session
// creation, which reaches the payment provider and may issue a reward coupon.
func (h *Handler) Routes(r chi.Router, sessionLimit ...func(http.Handler) http.Handler) {
	r.With(sessionLimit...).Post("/payments/create-checkout-session", h.CreateCheckoutSession)
	r.Post("/payments/checkout-success", h.CheckoutSuccess)
	r.Get("/coupons", h.ListCoupons)
	r.Get("/orders", h.ListOrders)
}
