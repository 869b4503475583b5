package store

import (
	"context"
	"database/sql"

	"github.com/castpost/castpost-api/internal/domain"
	"github.com/google/uuid"
)

// SelectionStore defines the interface for platform selection persistence.
// Version: 1.0
type SelectionStore interface {
	// ListByTask returns every selection belonging to the task, ordered by
	// creation time. Returns an empty slice when the task has none.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.PlatformSelection, error)

	// GetByID retrieves a selection by its unique ID.
	// Returns ErrSelectionNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PlatformSelection, error)

	// UpdatePublishStatus sets the selection's publish status. The update is
	// guarded in SQL so rows already in a terminal status (posted, failed)
	// are never modified; attempting to do so returns ErrUpdateFailed.
	UpdatePublishStatus(ctx context.Context, id uuid.UUID, status domain.PublishStatus) error

	// WithTxSelectionStore returns a new SelectionStore instance that uses
	// the provided transaction.
	WithTxSelectionStore(tx *sql.Tx) SelectionStore
}
