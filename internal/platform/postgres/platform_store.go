package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/castpost/castpost-api/internal/domain"
	"github.com/castpost/castpost-api/internal/store"
	"github.com/google/uuid"
)

// PostgresPlatformStore implements the store.PlatformStore interface using PostgreSQL.
type PostgresPlatformStore struct {
	db store.DBTX
}

// NewPostgresPlatformStore creates a new PostgresPlatformStore.
func NewPostgresPlatformStore(db store.DBTX) *PostgresPlatformStore {
	return &PostgresPlatformStore{
		db: db,
	}
}

// Ensure PostgresPlatformStore implements store.PlatformStore interface
var _ store.PlatformStore = (*PostgresPlatformStore)(nil)

// GetByID implements store.PlatformStore.GetByID.
func (s *PostgresPlatformStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Platform, error) {
	query := `
		SELECT id, name, api_name, account_id, sealed_token, token_expires_at, active, created_at, updated_at
		FROM platforms
		WHERE id = $1
	`

	var platform domain.Platform
	var expiresAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&platform.ID,
		&platform.Name,
		&platform.APIName,
		&platform.AccountID,
		&platform.SealedToken,
		&expiresAt,
		&platform.Active,
		&platform.CreatedAt,
		&platform.UpdatedAt,
	)
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, fmt.Errorf("%w: %v", store.ErrPlatformNotFound, err)
		}
		return nil, MapError(err)
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		platform.TokenExpiresAt = &t
	}

	return &platform, nil
}

// PostgresContentStore implements the store.ContentStore interface using PostgreSQL.
type PostgresContentStore struct {
	db store.DBTX
}

// NewPostgresContentStore creates a new PostgresContentStore.
func NewPostgresContentStore(db store.DBTX) *PostgresContentStore {
	return &PostgresContentStore{
		db: db,
	}
}

// Ensure PostgresContentStore implements store.ContentStore interface
var _ store.ContentStore = (*PostgresContentStore)(nil)

// GetByTaskID implements store.ContentStore.GetByTaskID.
// Hashtags and media are stored as JSONB columns written by the upstream
// generation service.
func (s *PostgresContentStore) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.GeneratedContent, error) {
	query := `
		SELECT task_id, caption, hashtags, media, created_at
		FROM generated_content
		WHERE task_id = $1
	`

	var content domain.GeneratedContent
	var hashtags, media []byte

	err := s.db.QueryRowContext(ctx, query, taskID).Scan(
		&content.TaskID,
		&content.Caption,
		&hashtags,
		&media,
		&content.CreatedAt,
	)
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, fmt.Errorf("%w: %v", store.ErrContentNotFound, err)
		}
		return nil, MapError(err)
	}

	if len(hashtags) > 0 {
		if err := json.Unmarshal(hashtags, &content.Hashtags); err != nil {
			return nil, fmt.Errorf("%w: malformed hashtags payload: %v", store.ErrInvalidEntity, err)
		}
	}

	if len(media) > 0 {
		if err := json.Unmarshal(media, &content.Media); err != nil {
			return nil, fmt.Errorf("%w: malformed media payload: %v", store.ErrInvalidEntity, err)
		}
	}

	return &content, nil
}
