package auth

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/apperrors"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAdmin(t *testing.T) {
	assert.True(t, apperrors.Is(RequireAdmin(nil), apperrors.Unauthenticated))
	assert.True(t, apperrors.Is(RequireAdmin(&Caller{UID: "u1", Role: "customer"}), apperrors.PermissionDenied))
	assert.NoError(t, RequireAdmin(&Caller{UID: "a1", Role: RoleAdmin}))
}

func TestRequireAuth(t *testing.T) {
	assert.True(t, apperrors.Is(RequireAuth(&Caller{}), apperrors.Unauthenticated))
	assert.NoError(t, RequireAuth(&Caller{UID: "u1"}))
}

func TestMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/", func(c *fiber.Ctx) error {
		caller := FromContext(c)
		if caller == nil {
			return c.SendString("anonymous")
		}
		return c.SendString(caller.UID + ":" + caller.Role)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderUserID, "a1")
	req.Header.Set(HeaderRole, "Admin")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "a1:admin", string(body))

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "anonymous", string(body))
}
