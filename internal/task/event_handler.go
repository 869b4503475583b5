package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/castpost/castpost-api/internal/events"
	"github.com/castpost/castpost-api/internal/service"
	"github.com/castpost/castpost-api/internal/store"
)

// Dispatcher claims a task and enqueues its execution. Implemented by
// service.DispatchService; declared here as an interface so the handler can
// be tested without the dispatch machinery.
type Dispatcher interface {
	PostNow(ctx context.Context, taskID uuid.UUID) error
}

// DispatchEventHandler implements events.EventHandler by routing dispatch
// request events to the dispatcher.
type DispatchEventHandler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewDispatchEventHandler creates an event handler around the dispatcher.
func NewDispatchEventHandler(dispatcher Dispatcher, logger *slog.Logger) *DispatchEventHandler {
	return &DispatchEventHandler{
		dispatcher: dispatcher,
		logger:     logger.With("component", "dispatch_event_handler"),
	}
}

// HandleEvent processes a dispatch request. A lost claim is not an error: the
// event's intent (the task gets dispatched once) is already satisfied.
func (h *DispatchEventHandler) HandleEvent(ctx context.Context, event *events.DispatchRequestEvent) error {
	log := h.logger.With(
		"event_id", event.ID,
		"task_id", event.TaskID,
		"reason", event.Reason,
	)

	err := h.dispatcher.PostNow(ctx, event.TaskID)
	switch {
	case errors.Is(err, service.ErrAlreadyDispatched):
		log.Info("task already dispatched, event satisfied")
		return nil
	case store.IsNotFoundError(err):
		log.Warn("dispatch requested for unknown task")
		return fmt.Errorf("dispatching task %s: %w", event.TaskID, err)
	case err != nil:
		log.Error("dispatch failed", "error", err)
		return fmt.Errorf("dispatching task %s: %w", event.TaskID, err)
	}

	log.Info("task dispatched from event")
	return nil
}
