package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/castpost/castpost-api/internal/domain"
	"github.com/castpost/castpost-api/internal/platform/logger"
	"github.com/castpost/castpost-api/internal/store"
	"github.com/google/uuid"
)

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, status, scheduled_at, time_zone, notes, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, fmt.Errorf("%w: %v", store.ErrTaskNotFound, err)
		}
		return nil, MapError(err)
	}

	return task, nil
}

// ClaimForExecution implements store.TaskStore.ClaimForExecution.
// The SELECT ... FOR UPDATE row lock serializes concurrent dispatchers:
// exactly one observes a dispatchable status and performs the flip to queued.
func (s *PostgresTaskStore) ClaimForExecution(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, status, scheduled_at, time_zone, notes, created_at, updated_at
		FROM tasks
		WHERE id = $1
		FOR UPDATE
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, fmt.Errorf("%w: %v", store.ErrTaskNotFound, err)
		}
		return nil, MapError(err)
	}

	if !task.IsDispatchable() {
		log.Debug("task claim lost",
			"task_id", id,
			"status", task.Status)
		return nil, fmt.Errorf("%w: task %s is %s", store.ErrNotDispatchable, id, task.Status)
	}

	update := `
		UPDATE tasks
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, update, domain.TaskStatusQueued, now, id); err != nil {
		return nil, MapError(err)
	}

	task.Status = domain.TaskStatusQueued
	task.UpdatedAt = now

	log.Info("task claimed for execution", "task_id", id)
	return task, nil
}

// UpdateStatus implements store.TaskStore.UpdateStatus.
func (s *PostgresTaskStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error {
	query := `
		UPDATE tasks
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}

	if rowsAffected == 0 {
		return store.ErrTaskNotFound
	}

	return nil
}

// ListDue implements store.TaskStore.ListDue.
func (s *PostgresTaskStore) ListDue(ctx context.Context, due time.Time, limit int) ([]*domain.Task, error) {
	query := `
		SELECT id, status, scheduled_at, time_zone, notes, created_at, updated_at
		FROM tasks
		WHERE status = $1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, domain.TaskStatusScheduled, due, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return tasks, nil
}

// WithTxTaskStore implements store.TaskStore.WithTxTaskStore.
func (s *PostgresTaskStore) WithTxTaskStore(tx *sql.Tx) store.TaskStore {
	return NewPostgresTaskStore(tx)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var scheduledAt sql.NullTime
	var notes sql.NullString

	if err := row.Scan(
		&task.ID,
		&task.Status,
		&scheduledAt,
		&task.TimeZone,
		&notes,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if scheduledAt.Valid {
		t := scheduledAt.Time
		task.ScheduledAt = &t
	}
	task.Notes = notes.String

	return &task, nil
}
