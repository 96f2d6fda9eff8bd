package identity_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/bananagame/banago/internal/domain"
	"github.com/bananagame/banago/internal/errors"
	"github.com/bananagame/banago/internal/identity"
)

func TestService_Login(t *testing.T) {
	s := identity.NewService(identity.Config{
		Secret: "test-secret",
		Users:  map[string]string{"alice": "alice123"},
	})

	token, err := s.Login("alice", "alice123")
	require.NoError(t, err)

	p, err := s.Verify(token)
	require.NoError(t, err)
	require.Equal(t, domain.Principal{Username: "alice"}, p)
}

func TestService_Login_Rejected(t *testing.T) {
	s := identity.NewService(identity.Config{
		Secret: "test-secret",
		Users:  map[string]string{"alice": "alice123"},
	})

	tests := map[string]struct {
		username string
		password string
	}{
		"unknown user":   {username: "mallory", password: "x"},
		"wrong password": {username: "alice", password: "nope"},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := s.Login(tt.username, tt.password)
			require.Error(t, err)
			require.True(t, errors.IsCode(err, errors.CodeUnauthenticated))
		})
	}
}

func TestService_Verify_Rejected(t *testing.T) {
	s := identity.NewService(identity.Config{Secret: "test-secret"})

	t.Run("garbage token", func(t *testing.T) {
		_, err := s.Verify("not.a.token")
		require.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := identity.NewService(identity.Config{Secret: "other-secret"})
		token, err := other.Issue("alice")
		require.NoError(t, err)

		_, err = s.Verify(token)
		require.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := identity.NewService(identity.Config{
			Secret: "test-secret",
			TTL:    -time.Minute,
		})
		token, err := expired.Issue("alice")
		require.NoError(t, err)

		_, err = s.Verify(token)
		require.Error(t, err)
	})
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := identity.NewService(identity.Config{Secret: "test-secret"})
	token, err := s.Issue("alice")
	require.NoError(t, err)

	e := gin.New()
	e.GET("/protected", identity.Middleware(s), func(c *gin.Context) {
		p, ok := identity.PrincipalFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"username": p.Username})
	})

	tests := map[string]struct {
		header     string
		wantStatus int
	}{
		"valid token":     {header: "Bearer " + token, wantStatus: http.StatusOK},
		"missing header":  {header: "", wantStatus: http.StatusUnauthorized},
		"not bearer":      {header: "Basic abc", wantStatus: http.StatusUnauthorized},
		"malformed token": {header: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			e.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
