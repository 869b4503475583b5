package postgres

import (
	"context"
	"database/sql"

	"github.com/castpost/castpost-api/internal/domain"
	"github.com/castpost/castpost-api/internal/store"
	"github.com/google/uuid"
)

// PostgresErrorLogStore implements the store.ErrorLogStore interface using PostgreSQL.
type PostgresErrorLogStore struct {
	db store.DBTX
}

// NewPostgresErrorLogStore creates a new PostgresErrorLogStore.
func NewPostgresErrorLogStore(db store.DBTX) *PostgresErrorLogStore {
	return &PostgresErrorLogStore{
		db: db,
	}
}

// Ensure PostgresErrorLogStore implements store.ErrorLogStore interface
var _ store.ErrorLogStore = (*PostgresErrorLogStore)(nil)

// Create implements store.ErrorLogStore.Create.
func (s *PostgresErrorLogStore) Create(ctx context.Context, entry *domain.ErrorLog) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO error_logs
			(id, task_id, platform_id, attempt_id, error_type, error_code, message, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.TaskID,
		entry.PlatformID,
		entry.AttemptID,
		entry.ErrorType,
		entry.ErrorCode,
		entry.Message,
		nullBytes(entry.Details),
		entry.CreatedAt,
	)
	if err != nil {
		return MapError(err)
	}

	return nil
}

// ListByTask implements store.ErrorLogStore.ListByTask.
func (s *PostgresErrorLogStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.ErrorLog, error) {
	query := `
		SELECT id, task_id, platform_id, attempt_id, error_type, error_code, message, details, created_at
		FROM error_logs
		WHERE task_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*domain.ErrorLog
	for rows.Next() {
		var entry domain.ErrorLog
		var taskRef, platformRef, attemptRef uuid.NullUUID
		var errorCode sql.NullString
		var details []byte

		if err := rows.Scan(
			&entry.ID,
			&taskRef,
			&platformRef,
			&attemptRef,
			&entry.ErrorType,
			&errorCode,
			&entry.Message,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, MapError(err)
		}

		if taskRef.Valid {
			id := taskRef.UUID
			entry.TaskID = &id
		}
		if platformRef.Valid {
			id := platformRef.UUID
			entry.PlatformID = &id
		}
		if attemptRef.Valid {
			id := attemptRef.UUID
			entry.AttemptID = &id
		}
		entry.ErrorCode = errorCode.String
		entry.Details = details

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return entries, nil
}

// WithTxErrorLogStore implements store.ErrorLogStore.WithTxErrorLogStore.
func (s *PostgresErrorLogStore) WithTxErrorLogStore(tx *sql.Tx) store.ErrorLogStore {
	return NewPostgresErrorLogStore(tx)
}
