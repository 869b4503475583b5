package store

import (
	"context"

	"github.com/castpost/castpost-api/internal/domain"
	"github.com/google/uuid"
)

// PlatformStore defines read-only access to connected platforms. The
// publishing engine never mutates platform rows; credentials are written by
// the external authorization flow.
// Version: 1.0
type PlatformStore interface {
	// GetByID retrieves a platform by its unique ID.
	// Returns ErrPlatformNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Platform, error)
}

// ContentStore defines read-only access to the generated content attached to
// a task. Content is produced by the external generation service.
// Version: 1.0
type ContentStore interface {
	// GetByTaskID retrieves the content for a task.
	// Returns ErrContentNotFound if the task has no content.
	GetByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.GeneratedContent, error)
}
