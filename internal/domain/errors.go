package domain

import (
	"errors"
	"fmt"
)

// Common domain errors shared across entities.
var (
	// ErrValidation is the base error for all entity validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when an entity is asked to move to a
	// state its state machine does not permit from the current state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTerminalStatus is returned when a mutation is attempted on an entity
	// that has already reached a terminal status.
	ErrTerminalStatus = errors.New("entity is in a terminal status")
)

// ValidationError describes a validation failure on a specific field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError wrapping the given base error.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
