package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-checkout/internal/domain/checkout"
)

// buildErrorStatus maps BuildSession errors to a status code and a client
// message. Coupon failures never say why the coupon was rejected.
func buildErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, checkout.ErrInvalidCart):
		return http.StatusBadRequest, "invalid or empty products array"
	case errors.Is(err, checkout.ErrInvalidCoupon):
		return http.StatusBadRequest, "invalid coupon code"
	case errors.Is(err, checkout.ErrProviderRejected):
		return http.StatusBadGateway, "payment provider rejected the checkout"
	case errors.Is(err, checkout.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "payment provider unavailable"
	default:
		return http.StatusInternalServerError, "error processing checkout"
	}
}

// confirmErrorStatus maps Confirm errors to a status code and a client
// message.
func confirmErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, checkout.ErrInvalidSession):
		return http.StatusBadRequest, "invalid checkout session"
	case errors.Is(err, checkout.ErrPaymentNotCompleted):
		return http.StatusPaymentRequired, "payment not completed"
	case errors.Is(err, checkout.ErrConfirmationInProgress):
		return http.StatusConflict, "checkout confirmation in progress"
	case errors.Is(err, checkout.ErrProviderRejected):
		return http.StatusBadGateway, "payment provider rejected the request"
	case errors.Is(err, checkout.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "payment provider unavailable"
	default:
		return http.StatusInternalServerError, "failed to process checkout success"
	}
}
