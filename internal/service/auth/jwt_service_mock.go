package auth

import (
	"context"

	"github.com/google/uuid"
)

// MockJWTService is a configurable JWTService for handler and middleware
// tests. The zero value accepts any token and reports uuid.Nil as the caller.
type MockJWTService struct {
	// Token is returned by GenerateToken when GenerateErr is nil.
	Token string

	// CallerID is reported by ValidateToken when ValidateErr is nil.
	CallerID uuid.UUID

	GenerateErr error
	ValidateErr error
}

var _ JWTService = (*MockJWTService)(nil)

func (m *MockJWTService) GenerateToken(ctx context.Context, callerID uuid.UUID) (string, error) {
	if m.GenerateErr != nil {
		return "", m.GenerateErr
	}
	if m.Token != "" {
		return m.Token, nil
	}
	return "mock-token", nil
}

func (m *MockJWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if m.ValidateErr != nil {
		return nil, m.ValidateErr
	}
	return &Claims{CallerID: m.CallerID, Subject: m.CallerID.String()}, nil
}
