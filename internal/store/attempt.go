package store

import (
	"context"
	"database/sql"

	"github.com/castpost/castpost-api/internal/domain"
	"github.com/google/uuid"
)

// AttemptStore defines the interface for post attempt persistence.
// Attempts are append-only: there are deliberately no update or delete
// operations. Corrections happen via new attempts.
// Version: 1.0
type AttemptStore interface {
	// Create persists a new attempt row.
	Create(ctx context.Context, attempt *domain.PostAttempt) error

	// ListByTask returns all attempts for a task, oldest first.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.PostAttempt, error)

	// WithTxAttemptStore returns a new AttemptStore instance that uses the
	// provided transaction.
	WithTxAttemptStore(tx *sql.Tx) AttemptStore
}

// ErrorLogStore defines the interface for the append-only error audit trail.
// Version: 1.0
type ErrorLogStore interface {
	// Create persists a new error log entry.
	Create(ctx context.Context, entry *domain.ErrorLog) error

	// ListByTask returns all error log entries referencing a task, oldest first.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.ErrorLog, error)

	// WithTxErrorLogStore returns a new ErrorLogStore instance that uses the
	// provided transaction.
	WithTxErrorLogStore(tx *sql.Tx) ErrorLogStore
}
