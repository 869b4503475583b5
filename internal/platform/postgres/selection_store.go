package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/castpost/castpost-api/internal/domain"
	"github.com/castpost/castpost-api/internal/store"
	"github.com/google/uuid"
)

// PostgresSelectionStore implements the store.SelectionStore interface using PostgreSQL.
type PostgresSelectionStore struct {
	db store.DBTX
}

// NewPostgresSelectionStore creates a new PostgresSelectionStore.
func NewPostgresSelectionStore(db store.DBTX) *PostgresSelectionStore {
	return &PostgresSelectionStore{
		db: db,
	}
}

// Ensure PostgresSelectionStore implements store.SelectionStore interface
var _ store.SelectionStore = (*PostgresSelectionStore)(nil)

// ListByTask implements store.SelectionStore.ListByTask.
func (s *PostgresSelectionStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.PlatformSelection, error) {
	query := `
		SELECT id, task_id, platform_id, publish_status, scheduled_at, created_at, updated_at
		FROM platform_selections
		WHERE task_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var selections []*domain.PlatformSelection
	for rows.Next() {
		sel, err := scanSelection(rows)
		if err != nil {
			return nil, MapError(err)
		}
		selections = append(selections, sel)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return selections, nil
}

// GetByID implements store.SelectionStore.GetByID.
func (s *PostgresSelectionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.PlatformSelection, error) {
	query := `
		SELECT id, task_id, platform_id, publish_status, scheduled_at, created_at, updated_at
		FROM platform_selections
		WHERE id = $1
	`

	sel, err := scanSelection(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, fmt.Errorf("%w: %v", store.ErrSelectionNotFound, err)
		}
		return nil, MapError(err)
	}

	return sel, nil
}

// UpdatePublishStatus implements store.SelectionStore.UpdatePublishStatus.
// The WHERE clause excludes terminal rows so posted/failed selections can
// never be rewritten, even by buggy callers.
func (s *PostgresSelectionStore) UpdatePublishStatus(ctx context.Context, id uuid.UUID, status domain.PublishStatus) error {
	query := `
		UPDATE platform_selections
		SET publish_status = $1, updated_at = $2
		WHERE id = $3 AND publish_status NOT IN ($4, $5)
	`

	result, err := s.db.ExecContext(ctx, query,
		status,
		time.Now().UTC(),
		id,
		domain.PublishStatusPosted,
		domain.PublishStatusFailed,
	)
	if err != nil {
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: selection %s missing or terminal", store.ErrUpdateFailed, id)
	}

	return nil
}

// WithTxSelectionStore implements store.SelectionStore.WithTxSelectionStore.
func (s *PostgresSelectionStore) WithTxSelectionStore(tx *sql.Tx) store.SelectionStore {
	return NewPostgresSelectionStore(tx)
}

func scanSelection(row rowScanner) (*domain.PlatformSelection, error) {
	var sel domain.PlatformSelection
	var scheduledAt sql.NullTime

	if err := row.Scan(
		&sel.ID,
		&sel.TaskID,
		&sel.PlatformID,
		&sel.PublishStatus,
		&scheduledAt,
		&sel.CreatedAt,
		&sel.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if scheduledAt.Valid {
		t := scheduledAt.Time
		sel.ScheduledAt = &t
	}

	return &sel, nil
}
