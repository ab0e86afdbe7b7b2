package domain

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrAuthRequired      = errors.New("authentication required")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient points")
	ErrDuplicateBid      = errors.New("bidder already has a pending bid on this target")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrNotOpenForBidding = errors.New("target is not open for bidding")
)

// ErrorCode maps an error to the code carried by socket error frames.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return ErrCodeBadRequest
	case errors.Is(err, ErrAuthRequired), errors.Is(err, ErrForbidden):
		return ErrCodeUnauthorized
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	default:
		return ErrCodeInternalError
	}
}
