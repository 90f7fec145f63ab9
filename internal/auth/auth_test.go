package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-bot/internal/domain"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

type staticOperators map[string]domain.Operator

func (s staticOperators) Operator(username string) (*domain.Operator, bool) {
	op, ok := s[username]
	if !ok {
		return nil, false
	}
	return &op, true
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, exp, err := tm.GenerateToken("alice", domain.OperatorRoleOwner)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, domain.OperatorRoleOwner, claims.Role)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	token, _, err := tm.GenerateToken("alice", domain.OperatorRoleViewer)
	require.NoError(t, err)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "hunter2"))
	assert.Error(t, ComparePassword(hash, "wrong"))
}

func TestMiddlewareAndRoles(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	operators := staticOperators{
		"owner":  {Username: "owner", Role: domain.OperatorRoleOwner},
		"viewer": {Username: "viewer", Role: domain.OperatorRoleViewer},
	}
	mw := NewAuthMiddleware(tm, operators)

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		return c.SendStatus(de.HTTPStatus)
	}})
	app.Get("/any", mw.Handle, RequireRole(), func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.Username)
	})
	app.Post("/owner", mw.Handle, RequireRole(domain.OperatorRoleOwner), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	ownerToken, _, err := tm.GenerateToken("owner", domain.OperatorRoleOwner)
	require.NoError(t, err)
	viewerToken, _, err := tm.GenerateToken("viewer", domain.OperatorRoleViewer)
	require.NoError(t, err)
	ghostToken, _, err := tm.GenerateToken("ghost", domain.OperatorRoleOwner)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		status int
	}{
		{name: "missing header", method: http.MethodGet, path: "/any", status: http.StatusUnauthorized},
		{name: "wrong scheme", method: http.MethodGet, path: "/any", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage token", method: http.MethodGet, path: "/any", header: "Bearer abc", status: http.StatusUnauthorized},
		{name: "removed operator", method: http.MethodGet, path: "/any", header: "Bearer " + ghostToken, status: http.StatusUnauthorized},
		{name: "viewer reads", method: http.MethodGet, path: "/any", header: "Bearer " + viewerToken, status: http.StatusOK},
		{name: "viewer writes", method: http.MethodPost, path: "/owner", header: "Bearer " + viewerToken, status: http.StatusForbidden},
		{name: "owner writes", method: http.MethodPost, path: "/owner", header: "Bearer " + ownerToken, status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
