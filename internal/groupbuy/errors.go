package groupbuy

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrCapacityExceeded  = errors.New("group capacity exceeded")
	ErrGroupCompleted    = fmt.Errorf("group order already completed: %w", ErrCapacityExceeded)
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInvalidTransition = errors.New("invalid order status transition")

	ErrIdempotencyKeyReused = errors.New("idempotency key already used for another product")
	ErrIdempotencyInFlight  = errors.New("a join with this idempotency key is still in progress")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a validation failure,
// including ErrInvalidQuantity.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrInvalidQuantity)
}
