package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/auth"
	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/money"
)

type createSessionRequest struct {
	// HasProducts is false when the body omits products; the stored cart is
	// used then.
	HasProducts bool
	Products    []cart.LineItem
	CouponCode  string
}

func decodeCreateSessionRequest(data []byte) (createSessionRequest, error) {
	var req createSessionRequest
	if len(data) == 0 {
		return req, nil
	}
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "products":
			if d.Next() == jx.Null {
				return d.Null()
			}
			req.HasProducts = true
			req.Products = []cart.LineItem{}
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeLineItem(d)
				if err != nil {
					return err
				}
				req.Products = append(req.Products, item)
				return nil
			})
		case "couponCode":
			code, err := decodeOptStr(d)
			req.CouponCode = code
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return req, errors.Wrap(errBadRequest, err.Error())
	}
	return req, nil
}

func decodeLineItem(d *jx.Decoder) (cart.LineItem, error) {
	var item cart.LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "_id":
			item.ProductID, err = d.Str()
		case "name":
			item.Name, err = decodeOptStr(d)
		case "image":
			item.Image, err = decodeOptStr(d)
		case "price":
			item.Price, err = decodeDecimal(d)
		case "quantity":
			item.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	return item, err
}

// CreateCheckoutSession prices the caller's cart and opens a hosted payment
// session.
//
// POST /api/payments/create-checkout-session
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserID(ctx)

	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadRequest.Error())
		return
	}
	req, err := decodeCreateSessionRequest(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadRequest.Error())
		return
	}

	res, err := h.checkout.BuildSession(ctx, checkout.BuildRequest{
		UserID:         userID,
		Items:          req.Products,
		FromStoredCart: !req.HasProducts,
		CouponCode:     req.CouponCode,
	})
	if err != nil {
		code, msg := buildErrorStatus(err)
		if code >= http.StatusInternalServerError {
			zctx.From(ctx).Error("Create checkout session failed", zap.Error(err))
		}
		writeError(w, code, msg)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("sessionId")
	e.Str(res.SessionID)
	e.FieldStart("url")
	e.Str(res.RedirectURL)
	e.FieldStart("totalAmount")
	encodeDecimal(&e, money.FromMinorUnits(res.AdjustedTotal))
	if res.NewCouponCode != "" {
		e.FieldStart("newCoupon")
		e.Str(res.NewCouponCode)
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func decodeSessionID(data []byte) (string, error) {
	var id string
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "sessionId" {
			return d.Skip()
		}
		var err error
		id, err = decodeOptStr(d)
		return err
	})
	if err != nil {
		return "", errors.Wrap(errBadRequest, err.Error())
	}
	return id, nil
}

// CheckoutSuccess finalizes a paid session into an order. Repeated calls for
// the same session return the same order.
//
// POST /api/payments/checkout-success
func (h *Handler) CheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadRequest.Error())
		return
	}
	sessionID, err := decodeSessionID(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadRequest.Error())
		return
	}

	userID, _ := auth.UserID(ctx)
	res, err := h.checkout.Confirm(ctx, userID, sessionID)
	if err != nil {
		code, msg := confirmErrorStatus(err)
		if code >= http.StatusInternalServerError {
			zctx.From(ctx).Error("Checkout confirmation failed",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
		writeError(w, code, msg)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("message")
	e.Str("Checkout successful")
	e.FieldStart("orderId")
	e.Str(res.Order.ID)
	e.FieldStart("alreadyFinalized")
	e.Bool(res.AlreadyFinalized)
	if res.NewCouponCode != "" {
		e.FieldStart("newCoupon")
		e.Str(res.NewCouponCode)
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}
