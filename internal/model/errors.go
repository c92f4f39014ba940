package model

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingID is returned when an update targets a record without an id.
	ErrMissingID = errors.New("anchor id is required")
	// ErrNotFound is returned when the target anchor does not exist.
	ErrNotFound = errors.New("anchor not found")
	// ErrStoreUnavailable wraps network and connectivity failures of a store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrStoreRejected wraps refusals from a reachable store (auth, permission, conflict).
	ErrStoreRejected = errors.New("store rejected operation")
)

// ValidationError represents a rejected anchor candidate.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error (including wrapped errors)
func IsValidationError(err error) bool {
	var validationErr ValidationError
	return errors.As(err, &validationErr)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsUnavailable reports whether err is or wraps ErrStoreUnavailable.
func IsUnavailable(err error) bool { return errors.Is(err, ErrStoreUnavailable) }

// IsRejected reports whether err is or wraps ErrStoreRejected.
func IsRejected(err error) bool { return errors.Is(err, ErrStoreRejected) }

// Unavailable wraps err as a store-unavailable failure for op.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}

// Rejected wraps err as a store-rejected failure for op.
func Rejected(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreRejected, err)
}

// NotFound reports a missing anchor id for op.
func NotFound(op, id string) error {
	return fmt.Errorf("%s %q: %w", op, id, ErrNotFound)
}
