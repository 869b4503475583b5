// Package api provides HTTP handlers for the publishing API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/castpost/castpost-api/internal/api/shared"
	"github.com/castpost/castpost-api/internal/domain"
	"github.com/castpost/castpost-api/internal/platform/logger"
	"github.com/castpost/castpost-api/internal/service"
	"github.com/castpost/castpost-api/internal/store"
)

// Dispatcher triggers immediate execution of a task.
type Dispatcher interface {
	PostNow(ctx context.Context, taskID uuid.UUID) error
}

// TaskResponse represents the response data for a task.
type TaskResponse struct {
	ID          string              `json:"id"`
	Status      string              `json:"status"`
	ScheduledAt *time.Time          `json:"scheduled_at,omitempty"`
	TimeZone    string              `json:"time_zone"`
	Notes       string              `json:"notes,omitempty"`
	Selections  []SelectionResponse `json:"selections"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// SelectionResponse represents one platform selection on a task.
type SelectionResponse struct {
	ID            string     `json:"id"`
	PlatformID    string     `json:"platform_id"`
	PublishStatus string     `json:"publish_status"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
}

// AttemptResponse represents one publish attempt record.
type AttemptResponse struct {
	ID          string      `json:"id"`
	PlatformID  string      `json:"platform_id"`
	AttemptedAt time.Time   `json:"attempted_at"`
	Status      string      `json:"status"`
	Response    interface{} `json:"response,omitempty"`
	LatencyMs   int64       `json:"latency_ms"`
	ErrorLogID  *string     `json:"error_log_id,omitempty"`
}

// ErrorLogResponse represents one entry in the failure audit trail.
type ErrorLogResponse struct {
	ID         string    `json:"id"`
	PlatformID *string   `json:"platform_id,omitempty"`
	AttemptID  *string   `json:"attempt_id,omitempty"`
	ErrorType  string    `json:"error_type"`
	ErrorCode  string    `json:"error_code,omitempty"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// PublishAcceptedResponse is returned when a post-now request wins the claim.
type PublishAcceptedResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	tasks      store.TaskStore
	selections store.SelectionStore
	attempts   store.AttemptStore
	errorLogs  store.ErrorLogStore
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(
	tasks store.TaskStore,
	selections store.SelectionStore,
	attempts store.AttemptStore,
	errorLogs store.ErrorLogStore,
	dispatcher Dispatcher,
	log *slog.Logger,
) *TaskHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		tasks:      tasks,
		selections: selections,
		attempts:   attempts,
		errorLogs:  errorLogs,
		dispatcher: dispatcher,
		logger:     log.With(slog.String("component", "task_handler")),
	}
}

// PublishNow handles POST /tasks/{id}/publish requests. It claims the task
// for immediate execution, bypassing its schedule.
func (h *TaskHandler) PublishNow(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID, ok := h.taskIDFromPath(w, r)
	if !ok {
		return
	}

	err := h.dispatcher.PostNow(r.Context(), taskID)
	if errors.Is(err, service.ErrAlreadyDispatched) {
		log.Debug("post-now lost the claim", slog.String("task_id", taskID.String()))
		shared.RespondWithErrorAndLog(w, r, http.StatusConflict,
			"Task is not in a dispatchable state", err)
		return
	}
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to dispatch task"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	log.Info("task dispatched via post-now", slog.String("task_id", taskID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, PublishAcceptedResponse{
		TaskID: taskID.String(),
		Status: string(domain.TaskStatusQueued),
	})
}

// GetTask handles GET /tasks/{id} requests. It returns the task together with
// its platform selections.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID, ok := h.taskIDFromPath(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.GetByID(r.Context(), taskID)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to get task"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	selections, err := h.selections.ListByTask(r.Context(), taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to get task", err)
		return
	}

	log.Debug("retrieved task",
		slog.String("task_id", taskID.String()),
		slog.Int("selection_count", len(selections)))
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task, selections))
}

// ListAttempts handles GET /tasks/{id}/attempts requests. It returns the full
// attempt history for a task, oldest first.
func (h *TaskHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskIDFromPath(w, r)
	if !ok {
		return
	}

	// Verify the task exists so a bad ID is a 404, not an empty list.
	if _, err := h.tasks.GetByID(r.Context(), taskID); err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to list attempts"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	attempts, err := h.attempts.ListByTask(r.Context(), taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to list attempts", err)
		return
	}

	responses := make([]AttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, attemptToResponse(attempt))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// ListErrorLogs handles GET /tasks/{id}/errors requests. It returns the
// failure audit trail for a task, oldest first.
func (h *TaskHandler) ListErrorLogs(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskIDFromPath(w, r)
	if !ok {
		return
	}

	if _, err := h.tasks.GetByID(r.Context(), taskID); err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to list error logs"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	entries, err := h.errorLogs.ListByTask(r.Context(), taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to list error logs", err)
		return
	}

	responses := make([]ErrorLogResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, errorLogToResponse(entry))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// taskIDFromPath extracts and parses the task ID from the URL path. On
// failure it writes the error response and returns ok=false.
func (h *TaskHandler) taskIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	pathID := chi.URLParam(r, "id")
	if pathID == "" {
		log.Warn("task ID not found in URL path")
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task ID is required")
		return uuid.Nil, false
	}

	taskID, err := uuid.Parse(pathID)
	if err != nil {
		log.Warn("invalid task ID format", slog.String("task_id", pathID))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID format")
		return uuid.Nil, false
	}

	return taskID, true
}

// taskToResponse converts a domain.Task and its selections to a TaskResponse.
func taskToResponse(task *domain.Task, selections []*domain.PlatformSelection) TaskResponse {
	selResponses := make([]SelectionResponse, 0, len(selections))
	for _, sel := range selections {
		selResponses = append(selResponses, SelectionResponse{
			ID:            sel.ID.String(),
			PlatformID:    sel.PlatformID.String(),
			PublishStatus: string(sel.PublishStatus),
			ScheduledAt:   sel.ScheduledAt,
		})
	}

	return TaskResponse{
		ID:          task.ID.String(),
		Status:      string(task.Status),
		ScheduledAt: task.ScheduledAt,
		TimeZone:    task.TimeZone,
		Notes:       task.Notes,
		Selections:  selResponses,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// attemptToResponse converts a domain.PostAttempt to an AttemptResponse.
func attemptToResponse(attempt *domain.PostAttempt) AttemptResponse {
	resp := AttemptResponse{
		ID:          attempt.ID.String(),
		PlatformID:  attempt.PlatformID.String(),
		AttemptedAt: attempt.AttemptedAt,
		Status:      string(attempt.Status),
		LatencyMs:   attempt.LatencyMs,
	}

	if len(attempt.Response) > 0 {
		var payload interface{}
		if err := json.Unmarshal(attempt.Response, &payload); err != nil {
			payload = string(attempt.Response)
		}
		resp.Response = payload
	}

	if attempt.ErrorLogID != nil {
		id := attempt.ErrorLogID.String()
		resp.ErrorLogID = &id
	}

	return resp
}

// errorLogToResponse converts a domain.ErrorLog to an ErrorLogResponse.
func errorLogToResponse(entry *domain.ErrorLog) ErrorLogResponse {
	resp := ErrorLogResponse{
		ID:        entry.ID.String(),
		ErrorType: entry.ErrorType,
		ErrorCode: entry.ErrorCode,
		Message:   entry.Message,
		CreatedAt: entry.CreatedAt,
	}

	if entry.PlatformID != nil {
		id := entry.PlatformID.String()
		resp.PlatformID = &id
	}
	if entry.AttemptID != nil {
		id := entry.AttemptID.String()
		resp.AttemptID = &id
	}

	return resp
}
