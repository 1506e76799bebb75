package service

import (
	"errors"
	"fmt"

	"ledgerpay/pkg/payment"
)

// Reconcile error kinds. Every kind leaves the ledger untouched.
var (
	ErrInvalidIntent       = errors.New("invalid intent")
	ErrInvalidAmount       = errors.New("amount rounds to zero cents")
	ErrOrderInvalid        = errors.New("order invalid")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrStoreFailure        = errors.New("store failure")
)

// ReconcileError reports why an event was not applied. errors.Is matches both
// Kind and the underlying cause.
type ReconcileError struct {
	Kind       error
	Provider   payment.Provider
	ExternalID string
	Err        error
}

func (e *ReconcileError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("reconcile %s/%s: %v", e.Provider, e.ExternalID, e.Kind)
	}
	return fmt.Sprintf("reconcile %s/%s: %v: %v", e.Provider, e.ExternalID, e.Kind, e.Err)
}

func (e *ReconcileError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether redelivering the same event may succeed.
func (e *ReconcileError) Retryable() bool {
	return errors.Is(e.Kind, ErrStoreFailure)
}

func reconcileErr(kind error, ev payment.Event, cause error) *ReconcileError {
	return &ReconcileError{Kind: kind, Provider: ev.Provider, ExternalID: ev.ExternalID, Err: cause}
}

// ErrorKind returns a short label for metrics and the webhook journal.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, payment.ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrInvalidIntent):
		return "invalid_intent"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrOrderInvalid):
		return "order_invalid"
	case errors.Is(err, ErrUnsupportedCurrency):
		return "unsupported_currency"
	case errors.Is(err, ErrStoreFailure):
		return "store_failure"
	default:
		return "error"
	}
}
