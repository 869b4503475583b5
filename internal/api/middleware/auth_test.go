package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castpost/castpost-api/internal/api/middleware"
	"github.com/castpost/castpost-api/internal/service/auth"
)

func protectedHandler(t *testing.T, wantCaller uuid.UUID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := middleware.GetCallerID(r)
		require.True(t, ok)
		assert.Equal(t, wantCaller, callerID)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateValidToken(t *testing.T) {
	callerID := uuid.New()
	mw := middleware.NewAuthMiddleware(&auth.MockJWTService{CallerID: callerID})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/tasks/abc", nil)
	r.Header.Set("Authorization", "Bearer some-token")

	mw.Authenticate(protectedHandler(t, callerID)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthenticateRejects(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		validateErr error
		wantBody    string
	}{
		{
			name:     "missing header",
			header:   "",
			wantBody: "Authorization header required",
		},
		{
			name:     "wrong scheme",
			header:   "Basic dXNlcjpwYXNz",
			wantBody: "Invalid authorization format",
		},
		{
			name:        "expired token",
			header:      "Bearer expired",
			validateErr: auth.ErrExpiredToken,
			wantBody:    "Token expired",
		},
		{
			name:        "invalid token",
			header:      "Bearer garbage",
			validateErr: auth.ErrInvalidToken,
			wantBody:    "Invalid token",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mw := middleware.NewAuthMiddleware(&auth.MockJWTService{ValidateErr: tc.validateErr})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/tasks/abc", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}

			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("next handler should not run")
			})
			mw.Authenticate(next).ServeHTTP(w, r)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tc.wantBody)
		})
	}
}
