package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/auth"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
)

// ListCoupons returns the caller's usable coupons.
//
// GET /api/coupons
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserID(ctx)

	coupons, err := h.coupons.ListActive(ctx, userID)
	if err != nil {
		zctx.From(ctx).Error("List coupons failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list coupons")
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for i := range coupons {
		encodeCoupon(&e, &coupons[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("discount")
	encodeDecimal(e, c.Discount)
	e.FieldStart("isActive")
	e.Bool(c.Active)
	if !c.ExpiresAt.IsZero() {
		e.FieldStart("expirationDate")
		e.Str(c.ExpiresAt.UTC().Format(timeLayout))
	}
	e.ObjEnd()
}
