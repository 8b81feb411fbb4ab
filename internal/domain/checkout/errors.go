package checkout

import "github.com/go-faster/errors"

// Errors returned by BuildSession and Confirm.
var (
	ErrInvalidCart            = errors.New("invalid cart")
	ErrInvalidCoupon          = errors.New("invalid coupon")
	ErrPaymentNotCompleted    = errors.New("payment not completed")
	ErrProviderUnavailable    = errors.New("payment provider unavailable")
	ErrProviderRejected       = errors.New("payment provider rejected request")
	ErrInvalidSession         = errors.New("invalid checkout session")
	ErrConfirmationInProgress = errors.New("confirmation already in progress")
)
