package postgres

import (
	"context"
	"database/sql"

	"github.com/castpost/castpost-api/internal/domain"
	"github.com/castpost/castpost-api/internal/store"
	"github.com/google/uuid"
)

// PostgresAttemptStore implements the store.AttemptStore interface using PostgreSQL.
type PostgresAttemptStore struct {
	db store.DBTX
}

// NewPostgresAttemptStore creates a new PostgresAttemptStore.
func NewPostgresAttemptStore(db store.DBTX) *PostgresAttemptStore {
	return &PostgresAttemptStore{
		db: db,
	}
}

// Ensure PostgresAttemptStore implements store.AttemptStore interface
var _ store.AttemptStore = (*PostgresAttemptStore)(nil)

// Create implements store.AttemptStore.Create.
func (s *PostgresAttemptStore) Create(ctx context.Context, attempt *domain.PostAttempt) error {
	if err := attempt.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO post_attempts
			(id, task_id, platform_id, attempted_at, status, response, latency_ms, error_log_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.TaskID,
		attempt.PlatformID,
		attempt.AttemptedAt,
		attempt.Status,
		nullBytes(attempt.Response),
		attempt.LatencyMs,
		attempt.ErrorLogID,
	)
	if err != nil {
		return MapError(err)
	}

	return nil
}

// ListByTask implements store.AttemptStore.ListByTask.
func (s *PostgresAttemptStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.PostAttempt, error) {
	query := `
		SELECT id, task_id, platform_id, attempted_at, status, response, latency_ms, error_log_id
		FROM post_attempts
		WHERE task_id = $1
		ORDER BY attempted_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var attempts []*domain.PostAttempt
	for rows.Next() {
		var attempt domain.PostAttempt
		var response []byte
		var errorLogID uuid.NullUUID

		if err := rows.Scan(
			&attempt.ID,
			&attempt.TaskID,
			&attempt.PlatformID,
			&attempt.AttemptedAt,
			&attempt.Status,
			&response,
			&attempt.LatencyMs,
			&errorLogID,
		); err != nil {
			return nil, MapError(err)
		}

		attempt.Response = response
		if errorLogID.Valid {
			id := errorLogID.UUID
			attempt.ErrorLogID = &id
		}

		attempts = append(attempts, &attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return attempts, nil
}

// WithTxAttemptStore implements store.AttemptStore.WithTxAttemptStore.
func (s *PostgresAttemptStore) WithTxAttemptStore(tx *sql.Tx) store.AttemptStore {
	return NewPostgresAttemptStore(tx)
}

// nullBytes maps an empty payload to NULL rather than an empty JSONB value.
func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
