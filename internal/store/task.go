package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/castpost/castpost-api/internal/domain"
	"github.com/google/uuid"
)

// TaskStore defines the interface for task persistence.
// Version: 1.0
type TaskStore interface {
	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// ClaimForExecution atomically flips a dispatchable task
	// (scheduled or draft_approved) to queued, holding a row lock
	// (SELECT ... FOR UPDATE) while it checks and flips the status.
	//
	// IMPORTANT: This method MUST be run within a transaction; the row lock
	// is only meaningful for the transaction's duration. Use WithTxTaskStore
	// together with store.RunInTransaction.
	//
	// Returns ErrTaskNotFound if the task does not exist and
	// ErrNotDispatchable if its status does not permit dispatch (a concurrent
	// dispatcher already claimed it, or the task is terminal).
	ClaimForExecution(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// UpdateStatus sets the task's status.
	// Returns ErrTaskNotFound if the task does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error

	// ListDue returns tasks in scheduled status whose scheduled_at is at or
	// before the given instant, oldest first, up to limit rows.
	ListDue(ctx context.Context, due time.Time, limit int) ([]*domain.Task, error)

	// WithTxTaskStore returns a new TaskStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTxTaskStore(tx *sql.Tx) TaskStore
}
