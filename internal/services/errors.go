package services

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// invalid_text_representation, raised for a malformed UUID literal.
const pqInvalidTextRepresentation = "22P02"

// Error kinds returned to clients. They are stable and part of the API.
const (
	KindValidation        = "VALIDATION_ERROR"
	KindUnauthorized      = "UNAUTHORIZED"
	KindNotFound          = "NOT_FOUND"
	KindForbidden         = "FORBIDDEN"
	KindInvalidTransition = "INVALID_TRANSITION"
	KindInsufficientFunds = "INSUFFICIENT_FUNDS"
	KindConflict          = "CONFLICT"
	KindRateLimited       = "RATE_LIMITED"
	KindInternal          = "INTERNAL_ERROR"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("concurrent modification detected")
	ErrRateLimited       = errors.New("rate limit exceeded")

	ErrInvalidAmount  = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrInvalidTrade   = fmt.Errorf("%w: invalid trade", ErrValidation)
	ErrInvalidMessage = fmt.Errorf("%w: invalid message", ErrValidation)
)

// KindOf maps an error returned by a service to its stable kind.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqInvalidTextRepresentation {
		return KindValidation
	}
	return KindInternal
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
