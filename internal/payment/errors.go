package payment

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"

	"github.com/xenking/storefront-checkout/internal/domain/checkout"
)

// UnavailableError reports a failed provider call. It matches
// checkout.ErrProviderUnavailable and unwraps to the cause.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Is(target error) bool {
	return target == checkout.ErrProviderUnavailable
}

// mapError turns a missing resource into checkout.ErrInvalidSession and any
// other rejected request into checkout.ErrProviderRejected. Everything else
// is reported as unavailable.
func mapError(err error, op string) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return &UnavailableError{Op: op, Err: err}
	}
	switch {
	case se.Code == stripe.ErrorCodeResourceMissing:
		return errors.Wrapf(checkout.ErrInvalidSession, "%s: %s", op, se.Msg)
	case se.Type == stripe.ErrorTypeInvalidRequest:
		return errors.Wrapf(checkout.ErrProviderRejected, "%s: %s (param %q)", op, se.Msg, se.Param)
	default:
		return &UnavailableError{Op: op, Err: err}
	}
}

// isClientError reports whether Stripe rejected the request itself. Such
// errors do not count against the circuit breaker.
func isClientError(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *stripe.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.HTTPStatusCode >= http.StatusBadRequest &&
		se.HTTPStatusCode < http.StatusInternalServerError &&
		se.HTTPStatusCode != http.StatusTooManyRequests
}
