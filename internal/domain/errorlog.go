package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for ErrorLog.
var (
	ErrEmptyErrorLogID   = errors.New("error log ID cannot be empty")
	ErrEmptyErrorType    = errors.New("error log type cannot be empty")
	ErrEmptyErrorMessage = errors.New("error log message cannot be empty")
)

// ErrorLog is one entry in the append-only failure audit trail. The optional
// task/platform/attempt references link the entry back to the attempt that
// produced it so operators can see exactly which platform failed and why.
type ErrorLog struct {
	ID         uuid.UUID       `json:"id"`
	TaskID     *uuid.UUID      `json:"task_id,omitempty"`
	PlatformID *uuid.UUID      `json:"platform_id,omitempty"`
	AttemptID  *uuid.UUID      `json:"attempt_id,omitempty"`
	ErrorType  string          `json:"error_type"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Message    string          `json:"message"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewErrorLog creates an error log entry with a generated ID.
func NewErrorLog(errorType, errorCode, message string, details json.RawMessage) (*ErrorLog, error) {
	entry := &ErrorLog{
		ID:        uuid.New(),
		ErrorType: errorType,
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	return entry, nil
}

// ForTask links the entry to a task and returns the entry for chaining.
func (e *ErrorLog) ForTask(taskID uuid.UUID) *ErrorLog {
	e.TaskID = &taskID
	return e
}

// ForPlatform links the entry to a platform and returns the entry for chaining.
func (e *ErrorLog) ForPlatform(platformID uuid.UUID) *ErrorLog {
	e.PlatformID = &platformID
	return e
}

// ForAttempt links the entry to a post attempt and returns the entry for chaining.
func (e *ErrorLog) ForAttempt(attemptID uuid.UUID) *ErrorLog {
	e.AttemptID = &attemptID
	return e
}

// Validate checks if the ErrorLog has valid data.
func (e *ErrorLog) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEmptyErrorLogID
	}

	if e.ErrorType == "" {
		return ErrEmptyErrorType
	}

	if e.Message == "" {
		return ErrEmptyErrorMessage
	}

	return nil
}
