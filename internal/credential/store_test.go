package credential

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/castpost/castpost-api/internal/domain"
	"github.com/castpost/castpost-api/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPlatformStore returns canned platforms keyed by ID.
type mockPlatformStore struct {
	platforms map[uuid.UUID]*domain.Platform
}

func (m *mockPlatformStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Platform, error) {
	platform, ok := m.platforms[id]
	if !ok {
		return nil, store.ErrPlatformNotFound
	}
	return platform, nil
}

// fixedClock always reports the same instant.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func newTestPlatform(t *testing.T, token string, expiresAt *time.Time) *domain.Platform {
	t.Helper()

	sealed, err := Seal(testKey(), token)
	require.NoError(t, err)

	return &domain.Platform{
		ID:             uuid.New(),
		Name:           "Test Page",
		APIName:        "facebook",
		AccountID:      "page-123",
		SealedToken:    sealed,
		TokenExpiresAt: expiresAt,
		Active:         true,
	}
}

func TestSealedStore_GetValidToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid token round-trips", func(t *testing.T) {
		t.Parallel()

		platform := newTestPlatform(t, "secret-token", nil)
		platforms := &mockPlatformStore{platforms: map[uuid.UUID]*domain.Platform{platform.ID: platform}}

		s, err := NewStore(platforms, testKey(), fixedClock{now})
		require.NoError(t, err)

		cred, err := s.GetValidToken(context.Background(), platform.ID)
		require.NoError(t, err)
		assert.Equal(t, "secret-token", cred.AccessToken)
		assert.Equal(t, "page-123", cred.AccountID)
	})

	t.Run("future expiry accepted", func(t *testing.T) {
		t.Parallel()

		future := now.Add(time.Hour)
		platform := newTestPlatform(t, "secret-token", &future)
		platforms := &mockPlatformStore{platforms: map[uuid.UUID]*domain.Platform{platform.ID: platform}}

		s, err := NewStore(platforms, testKey(), fixedClock{now})
		require.NoError(t, err)

		_, err = s.GetValidToken(context.Background(), platform.ID)
		assert.NoError(t, err)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		t.Parallel()

		past := now.Add(-time.Minute)
		platform := newTestPlatform(t, "secret-token", &past)
		platforms := &mockPlatformStore{platforms: map[uuid.UUID]*domain.Platform{platform.ID: platform}}

		s, err := NewStore(platforms, testKey(), fixedClock{now})
		require.NoError(t, err)

		_, err = s.GetValidToken(context.Background(), platform.ID)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		t.Parallel()

		platform := newTestPlatform(t, "x", nil)
		platform.SealedToken = nil
		platforms := &mockPlatformStore{platforms: map[uuid.UUID]*domain.Platform{platform.ID: platform}}

		s, err := NewStore(platforms, testKey(), fixedClock{now})
		require.NoError(t, err)

		_, err = s.GetValidToken(context.Background(), platform.ID)
		assert.ErrorIs(t, err, ErrTokenMissing)
	})

	t.Run("inactive platform rejected", func(t *testing.T) {
		t.Parallel()

		platform := newTestPlatform(t, "secret-token", nil)
		platform.Active = false
		platforms := &mockPlatformStore{platforms: map[uuid.UUID]*domain.Platform{platform.ID: platform}}

		s, err := NewStore(platforms, testKey(), fixedClock{now})
		require.NoError(t, err)

		_, err = s.GetValidToken(context.Background(), platform.ID)
		assert.ErrorIs(t, err, ErrPlatformInactive)
	})

	t.Run("wrong key fails to unseal", func(t *testing.T) {
		t.Parallel()

		platform := newTestPlatform(t, "secret-token", nil)
		platforms := &mockPlatformStore{platforms: map[uuid.UUID]*domain.Platform{platform.ID: platform}}

		otherKey := bytes.Repeat([]byte{0x24}, 32)
		s, err := NewStore(platforms, otherKey, fixedClock{now})
		require.NoError(t, err)

		_, err = s.GetValidToken(context.Background(), platform.ID)
		assert.ErrorIs(t, err, ErrUnsealFailed)
	})

	t.Run("unknown platform propagates store error", func(t *testing.T) {
		t.Parallel()

		platforms := &mockPlatformStore{platforms: map[uuid.UUID]*domain.Platform{}}

		s, err := NewStore(platforms, testKey(), fixedClock{now})
		require.NoError(t, err)

		_, err = s.GetValidToken(context.Background(), uuid.New())
		assert.ErrorIs(t, err, store.ErrPlatformNotFound)
	})
}

func TestNewStore_RejectsBadKey(t *testing.T) {
	t.Parallel()

	_, err := NewStore(&mockPlatformStore{}, []byte("short"), nil)
	assert.ErrorIs(t, err, ErrInvalidSealKey)
}
