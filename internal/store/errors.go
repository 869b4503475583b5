package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a second selection for the same task/platform pair).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update operation fails, for example
	// because the entity does not exist or the update violates constraints.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrTransient marks database-level failures that are expected to resolve
	// on retry (connection loss, pool exhaustion, serialization conflicts).
	// The job layer requeues an execution only when its error wraps ErrTransient.
	ErrTransient = errors.New("transient database error")

	// ErrNotDispatchable is returned by ClaimForExecution when the task is not
	// in a state from which it may be dispatched (already queued, terminal,
	// or still a draft). The caller treats this as "someone else won the claim".
	ErrNotDispatchable = errors.New("task is not dispatchable")

	// Entity-specific "not found" errors

	// ErrTaskNotFound indicates that the requested task does not exist in the store.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrSelectionNotFound indicates that the requested platform selection does not exist.
	ErrSelectionNotFound = fmt.Errorf("%w: platform selection", ErrNotFound)

	// ErrPlatformNotFound indicates that the requested platform does not exist.
	ErrPlatformNotFound = fmt.Errorf("%w: platform", ErrNotFound)

	// ErrContentNotFound indicates that the task has no generated content attached.
	ErrContentNotFound = fmt.Errorf("%w: generated content", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransientError checks if the error is a database-level transient failure
// that warrants a job-layer retry.
func IsTransientError(err error) bool {
	return errors.Is(err, ErrTransient)
}
