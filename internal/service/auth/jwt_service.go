// Package auth issues and validates the bearer tokens that protect the
// publishing API. Tokens are minted for service callers (the scheduling
// frontend, operational tooling), not end users.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService defines operations for managing API authentication tokens.
type JWTService interface {
	// GenerateToken creates a signed JWT for the given caller identity.
	GenerateToken(ctx context.Context, callerID uuid.UUID) (string, error)

	// ValidateToken validates the provided token string and extracts the
	// claims. Returns ErrExpiredToken or ErrInvalidToken on failure.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the decoded content of a validated token.
type Claims struct {
	// CallerID identifies the service or operator the token was issued for.
	CallerID uuid.UUID `json:"uid,omitempty"`

	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
