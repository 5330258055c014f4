package fulfill

import "errors"

// Sentinel errors for the fulfillment service layer.
var (
	// ErrValidation means a required field was missing or malformed.
	// Raised before any side effect, so the caller can safely retry.
	ErrValidation = errors.New("invalid order")
	// ErrNoConfiguredProduct means no line in the order routed to a key
	// pool, so zero keys were issued.
	ErrNoConfiguredProduct = errors.New("no configured product in order")
	// ErrDispatch means the notification email failed after its key was
	// already consumed. The key stays consumed; the error payload carries
	// what is needed for manual reconciliation.
	ErrDispatch = errors.New("notification dispatch failed")
)
