package reconcile

import "errors"

var (
	// ErrMissingField means a mandatory notification field was absent.
	ErrMissingField = errors.New("missing required parameters")

	// ErrOrderNotFound means the merchant payment id matched no order.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidSignature means a present signature failed verification,
	// or the signature was absent while required.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrUnknownStatus means the gateway sent a status code outside the
	// contract; no transition is applied.
	ErrUnknownStatus = errors.New("unknown transaction status")

	// ErrLockBusy means the per-order lock could not be acquired in time.
	ErrLockBusy = errors.New("order is being processed by another channel")
)
