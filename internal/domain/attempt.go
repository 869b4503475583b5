package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus classifies the outcome of a single publish attempt.
type AttemptStatus string

// Possible attempt status values.
const (
	AttemptStatusSuccess          AttemptStatus = "success"
	AttemptStatusTransientFailure AttemptStatus = "transient_failure"
	AttemptStatusPermanentFailure AttemptStatus = "permanent_failure"
)

// Common validation errors for PostAttempt.
var (
	ErrEmptyAttemptID       = errors.New("attempt ID cannot be empty")
	ErrEmptyAttemptTaskID   = errors.New("attempt task ID cannot be empty")
	ErrEmptyAttemptPlatform = errors.New("attempt platform ID cannot be empty")
	ErrInvalidAttemptStatus = errors.New("invalid attempt status")
)

// PostAttempt is the immutable record of one publish attempt against one
// platform. Retries produce new rows; existing rows are never edited.
type PostAttempt struct {
	ID          uuid.UUID       `json:"id"`
	TaskID      uuid.UUID       `json:"task_id"`
	PlatformID  uuid.UUID       `json:"platform_id"`
	AttemptedAt time.Time       `json:"attempted_at"`
	Status      AttemptStatus   `json:"status"`
	Response    json.RawMessage `json:"response,omitempty"`
	LatencyMs   int64           `json:"latency_ms"`
	ErrorLogID  *uuid.UUID      `json:"error_log_id,omitempty"`
}

// NewPostAttempt creates an attempt record. The response payload is stored
// opaquely: the engine never interprets platform responses beyond the post ID.
func NewPostAttempt(
	taskID, platformID uuid.UUID,
	status AttemptStatus,
	response json.RawMessage,
	latency time.Duration,
) (*PostAttempt, error) {
	attempt := &PostAttempt{
		ID:          uuid.New(),
		TaskID:      taskID,
		PlatformID:  platformID,
		AttemptedAt: time.Now().UTC(),
		Status:      status,
		Response:    response,
		LatencyMs:   latency.Milliseconds(),
	}

	if err := attempt.Validate(); err != nil {
		return nil, err
	}

	return attempt, nil
}

// Validate checks if the PostAttempt has valid data.
func (a *PostAttempt) Validate() error {
	if a.ID == uuid.Nil {
		return ErrEmptyAttemptID
	}

	if a.TaskID == uuid.Nil {
		return ErrEmptyAttemptTaskID
	}

	if a.PlatformID == uuid.Nil {
		return ErrEmptyAttemptPlatform
	}

	if !isValidAttemptStatus(a.Status) {
		return ErrInvalidAttemptStatus
	}

	return nil
}

// isValidAttemptStatus checks if the given status is a valid AttemptStatus.
func isValidAttemptStatus(status AttemptStatus) bool {
	switch status {
	case AttemptStatusSuccess, AttemptStatusTransientFailure, AttemptStatusPermanentFailure:
		return true
	default:
		return false
	}
}
