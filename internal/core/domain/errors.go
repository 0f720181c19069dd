package domain

import "errors"

var (
	// ErrInsufficientStock is a business-rule rejection: the requested
	// decrement would take stock below zero. Never retried.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrVersionConflict is the per-attempt signal that another writer
	// advanced the row version between read and update. Callers outside
	// the ledger should only ever see ErrConcurrencyExhausted.
	ErrVersionConflict = errors.New("version conflict")

	// ErrConcurrencyExhausted means the ledger gave up after its retry
	// ceiling; the operation is safe for the caller to resubmit.
	ErrConcurrencyExhausted = errors.New("concurrent modification, retries exhausted")

	ErrNotFound = errors.New("not found")

	ErrInvalidDelta = errors.New("stock delta must be non-zero")

	ErrOrderNotCancellable = errors.New("order cannot be cancelled")
)
