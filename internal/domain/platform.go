package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Platform.
var (
	ErrEmptyPlatformID      = errors.New("platform ID cannot be empty")
	ErrEmptyPlatformAPIName = errors.New("platform api_name cannot be empty")
)

// Platform holds a connected social account: identity, the sealed access
// token written by the external authorization flow, and its expiry. The
// publishing engine reads platforms but never mutates them.
type Platform struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	APIName        string     `json:"api_name"`
	AccountID      string     `json:"account_id"`
	SealedToken    []byte     `json:"-"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Validate checks if the Platform has valid data.
func (p *Platform) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyPlatformID
	}

	if p.APIName == "" {
		return ErrEmptyPlatformAPIName
	}

	return nil
}

// TokenExpired reports whether the platform token's expiry has passed.
// A nil expiry means the token does not expire.
func (p *Platform) TokenExpired(now time.Time) bool {
	return p.TokenExpiresAt != nil && !p.TokenExpiresAt.After(now)
}
