package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrValidation           = errors.New("validation error")
	ErrDuplicateRequest     = errors.New("duplicate request")
	ErrConflict             = errors.New("conflict")
)

// Error is a domain error with a caller-facing message. errors.Is matches it
// against its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func InsufficientFunds(survivorID, itemID string) error {
	return newError(ErrInsufficientFunds, "Survivor %s does not have enough of item %s", survivorID, itemID)
}

func InsufficientQuantity(survivorID, itemID string, have, want int) error {
	return newError(ErrInsufficientQuantity,
		"survivor %s holds %d of item %s, cannot remove %d", survivorID, have, itemID, want)
}

func Validation(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

// Message returns the caller-facing message of a domain error, or fallback.
func Message(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return fallback
}

func DuplicateRequest(key string) error {
	return newError(ErrDuplicateRequest, "duplicate request %s", key)
}
