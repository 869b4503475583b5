package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DispatchReason records which path requested the dispatch.
type DispatchReason string

// Dispatch reasons.
const (
	// ReasonPostNow is an immediate-publish request from the API.
	ReasonPostNow DispatchReason = "post_now"

	// ReasonDue is the scheduler's due-time scan.
	ReasonDue DispatchReason = "due"
)

// DispatchRequestEvent represents a request to dispatch a task for
// publishing. It carries only identifiers, keeping the emitter free of
// dispatch-layer dependencies.
type DispatchRequestEvent struct {
	// ID is a unique identifier for this event.
	ID uuid.UUID `json:"id"`

	// TaskID identifies the task to dispatch.
	TaskID uuid.UUID `json:"task_id"`

	// Reason records which path requested the dispatch.
	Reason DispatchReason `json:"reason"`

	// CreatedAt is the timestamp when the event was created.
	CreatedAt time.Time `json:"created_at"`
}

// NewDispatchRequestEvent creates a dispatch request for the given task.
func NewDispatchRequestEvent(taskID uuid.UUID, reason DispatchReason) *DispatchRequestEvent {
	return &DispatchRequestEvent{
		ID:        uuid.New(),
		TaskID:    taskID,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle dispatch
// request events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *DispatchRequestEvent) error
}

// EventEmitter defines an interface for components that can emit dispatch
// request events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *DispatchRequestEvent) error
}
