package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PublishStatus represents the per-platform delivery state of a selection.
type PublishStatus string

// Possible publish status values.
const (
	PublishStatusPending   PublishStatus = "pending"
	PublishStatusScheduled PublishStatus = "scheduled"
	PublishStatusPosted    PublishStatus = "posted"
	PublishStatusFailed    PublishStatus = "failed"
)

// Common validation errors for PlatformSelection.
var (
	ErrEmptySelectionID       = errors.New("selection ID cannot be empty")
	ErrEmptySelectionTaskID   = errors.New("selection task ID cannot be empty")
	ErrEmptySelectionPlatform = errors.New("selection platform ID cannot be empty")
	ErrInvalidPublishStatus   = errors.New("invalid publish status")
)

// PlatformSelection represents "this task must be posted to this platform".
// The (TaskID, PlatformID) pair is unique. Once a selection reaches posted or
// failed it never transitions again.
type PlatformSelection struct {
	ID            uuid.UUID     `json:"id"`
	TaskID        uuid.UUID     `json:"task_id"`
	PlatformID    uuid.UUID     `json:"platform_id"`
	PublishStatus PublishStatus `json:"publish_status"`
	ScheduledAt   *time.Time    `json:"scheduled_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewPlatformSelection creates a pending selection for the given task/platform pair.
func NewPlatformSelection(taskID, platformID uuid.UUID) (*PlatformSelection, error) {
	now := time.Now().UTC()
	sel := &PlatformSelection{
		ID:            uuid.New(),
		TaskID:        taskID,
		PlatformID:    platformID,
		PublishStatus: PublishStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := sel.Validate(); err != nil {
		return nil, err
	}

	return sel, nil
}

// Validate checks if the PlatformSelection has valid data.
func (s *PlatformSelection) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySelectionID
	}

	if s.TaskID == uuid.Nil {
		return ErrEmptySelectionTaskID
	}

	if s.PlatformID == uuid.Nil {
		return ErrEmptySelectionPlatform
	}

	if !isValidPublishStatus(s.PublishStatus) {
		return ErrInvalidPublishStatus
	}

	return nil
}

// IsTerminal reports whether the selection has reached posted or failed.
func (s *PlatformSelection) IsTerminal() bool {
	return s.PublishStatus == PublishStatusPosted || s.PublishStatus == PublishStatusFailed
}

// UpdatePublishStatus moves the selection along its lifecycle
// (pending → scheduled → posted|failed). Terminal states are final: any
// attempt to leave them returns ErrTerminalStatus.
func (s *PlatformSelection) UpdatePublishStatus(status PublishStatus) error {
	if !isValidPublishStatus(status) {
		return ErrInvalidPublishStatus
	}

	if s.IsTerminal() {
		return fmt.Errorf("%w: selection %s is %s", ErrTerminalStatus, s.ID, s.PublishStatus)
	}

	switch {
	case s.PublishStatus == PublishStatusPending && status == PublishStatusScheduled:
	case s.PublishStatus == PublishStatusScheduled &&
		(status == PublishStatusPosted || status == PublishStatusFailed):
	default:
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, s.PublishStatus, status)
	}

	s.PublishStatus = status
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// isValidPublishStatus checks if the given status is a valid PublishStatus.
func isValidPublishStatus(status PublishStatus) bool {
	switch status {
	case PublishStatusPending, PublishStatusScheduled, PublishStatusPosted, PublishStatusFailed:
		return true
	default:
		return false
	}
}
