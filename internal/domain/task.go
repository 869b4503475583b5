package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a publishing task.
type TaskStatus string

// Possible task status values.
const (
	TaskStatusDraft         TaskStatus = "draft"
	TaskStatusDraftApproved TaskStatus = "draft_approved"
	TaskStatusScheduled     TaskStatus = "scheduled"
	TaskStatusQueued        TaskStatus = "queued"
	TaskStatusPosted        TaskStatus = "posted"
	TaskStatusFailed        TaskStatus = "failed"
	TaskStatusCancelled     TaskStatus = "cancelled"
)

// Common validation errors for Task.
var (
	ErrEmptyTaskID       = errors.New("task ID cannot be empty")
	ErrInvalidTaskStatus = errors.New("invalid task status")
)

// validTaskTransitions enumerates the transitions the engine itself performs.
// Transitions outside this table (draft editing, cancellation before
// dispatch) belong to the external scheduling API, which operates on rows
// this engine never touches.
var validTaskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusDraft:         {TaskStatusDraftApproved, TaskStatusCancelled},
	TaskStatusDraftApproved: {TaskStatusScheduled, TaskStatusQueued, TaskStatusCancelled},
	TaskStatusScheduled:     {TaskStatusQueued, TaskStatusCancelled},
	TaskStatusQueued:        {TaskStatusPosted, TaskStatusFailed},
}

// Task represents a single publishing job: content prepared upstream that
// must be delivered to one or more platforms at a scheduled time or on demand.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Status      TaskStatus `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	TimeZone    string     `json:"time_zone"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTask creates a new Task in draft status with a generated ID.
func NewTask(timeZone string) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.New(),
		Status:    TaskStatusDraft,
		TimeZone:  timeZone,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	return nil
}

// IsDispatchable reports whether the task is in a state from which the
// dispatcher may claim it for execution.
func (t *Task) IsDispatchable() bool {
	return t.Status == TaskStatusScheduled || t.Status == TaskStatusDraftApproved
}

// IsTerminal reports whether the task has reached a final status.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusPosted ||
		t.Status == TaskStatusFailed ||
		t.Status == TaskStatusCancelled
}

// TransitionTo moves the task to the given status, enforcing the transition
// table. Returns ErrInvalidTransition when the move is not permitted.
func (t *Task) TransitionTo(status TaskStatus) error {
	if !isValidTaskStatus(status) {
		return ErrInvalidTaskStatus
	}

	for _, allowed := range validTaskTransitions[t.Status] {
		if allowed == status {
			t.Status = status
			t.UpdatedAt = time.Now().UTC()
			return nil
		}
	}

	return ErrInvalidTransition
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusDraft, TaskStatusDraftApproved, TaskStatusScheduled,
		TaskStatusQueued, TaskStatusPosted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}
