// Package credential provides read-only access to platform access tokens.
// Tokens are written sealed by the external authorization flow; this package
// unseals them and enforces expiry. A failed credential check is always a
// permanent failure for the selection that needed it: retrying cannot fix a
// missing or expired token without a separate refresh flow.
package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/castpost/castpost-api/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
)

// Common errors returned by the credential store.
var (
	// ErrTokenMissing is returned when the platform has no sealed token on record.
	ErrTokenMissing = errors.New("platform has no access token")

	// ErrTokenExpired is returned when the token's expiry has passed.
	ErrTokenExpired = errors.New("platform access token has expired")

	// ErrPlatformInactive is returned when the platform has been deactivated.
	ErrPlatformInactive = errors.New("platform is inactive")

	// ErrUnsealFailed is returned when the sealed token cannot be decrypted,
	// usually because the seal key changed after the token was written.
	ErrUnsealFailed = errors.New("failed to unseal access token")

	// ErrInvalidSealKey is returned when the configured seal key has the wrong length.
	ErrInvalidSealKey = errors.New("seal key must be 32 bytes")
)

// Credential is an unsealed, validated platform credential handed to adapters.
type Credential struct {
	// AccessToken is the plaintext bearer token for the platform API.
	AccessToken string

	// AccountID is the platform-side account the token belongs to
	// (Facebook page ID, Instagram user ID, LinkedIn author URN, ...).
	AccountID string
}

// Store resolves valid credentials for platforms. Implementations are
// read-only: the publishing engine never refreshes or rewrites tokens.
type Store interface {
	// GetValidToken returns the unsealed credential for the platform.
	// It fails when the platform is missing, inactive, has no token, or the
	// token has expired.
	GetValidToken(ctx context.Context, platformID uuid.UUID) (*Credential, error)
}

// Clock supplies the current time; injected so expiry checks are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// sealedStore is the production Store: it loads platform rows and unseals
// tokens with XChaCha20-Poly1305.
type sealedStore struct {
	platforms store.PlatformStore
	key       []byte
	clock     Clock
}

// NewStore creates a credential store over the given platform store. The key
// must be the 32-byte seal key shared with the authorization flow.
func NewStore(platforms store.PlatformStore, key []byte, clock Clock) (Store, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidSealKey
	}

	if clock == nil {
		clock = systemClock{}
	}

	return &sealedStore{
		platforms: platforms,
		key:       key,
		clock:     clock,
	}, nil
}

// GetValidToken implements Store.GetValidToken.
func (s *sealedStore) GetValidToken(ctx context.Context, platformID uuid.UUID) (*Credential, error) {
	platform, err := s.platforms.GetByID(ctx, platformID)
	if err != nil {
		return nil, err
	}

	if !platform.Active {
		return nil, fmt.Errorf("%w: %s", ErrPlatformInactive, platform.APIName)
	}

	if len(platform.SealedToken) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTokenMissing, platform.APIName)
	}

	if platform.TokenExpired(s.clock.Now()) {
		return nil, fmt.Errorf("%w: %s expired at %s",
			ErrTokenExpired, platform.APIName, platform.TokenExpiresAt.UTC().Format(time.RFC3339))
	}

	token, err := s.unseal(platform.SealedToken)
	if err != nil {
		return nil, err
	}

	return &Credential{
		AccessToken: token,
		AccountID:   platform.AccountID,
	}, nil
}

// unseal decrypts a nonce-prefixed XChaCha20-Poly1305 ciphertext.
func (s *sealedStore) unseal(sealed []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsealFailed, err)
	}

	if len(sealed) < aead.NonceSize() {
		return "", fmt.Errorf("%w: sealed payload too short", ErrUnsealFailed)
	}

	nonce := sealed[:aead.NonceSize()]
	ciphertext := sealed[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsealFailed, err)
	}

	return string(plaintext), nil
}
