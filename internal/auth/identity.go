// Package auth reads the caller identity established by the upstream
// identity provider and enforces role checks.
package auth

import (
	"strings"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/apperrors"
	"github.com/gofiber/fiber/v2"
)

const (
	RoleAdmin = "admin"

	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"

	localsKey = "caller"
)

// SystemActor is recorded on movements produced by event triggers.
const SystemActor = "system"

type Caller struct {
	UID  string
	Role string
}

func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// RequireAuth returns Unauthenticated for a nil caller.
func RequireAuth(c *Caller) error {
	if c == nil || c.UID == "" {
		return apperrors.NewUnauthenticated()
	}
	return nil
}

// RequireAdmin returns Unauthenticated or PermissionDenied unless the caller is an admin.
func RequireAdmin(c *Caller) error {
	if err := RequireAuth(c); err != nil {
		return err
	}
	if !c.IsAdmin() {
		return apperrors.NewPermissionDenied("Admin access required")
	}
	return nil
}

// Middleware stores the caller identity, if any, in the request locals.
// The gateway in front of the service verifies tokens and forwards claims
// as headers.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid := strings.TrimSpace(c.Get(HeaderUserID))
		if uid != "" {
			c.Locals(localsKey, &Caller{
				UID:  uid,
				Role: strings.ToLower(strings.TrimSpace(c.Get(HeaderRole))),
			})
		}
		return c.Next()
	}
}

// FromContext returns the caller stored by Middleware, or nil.
func FromContext(c *fiber.Ctx) *Caller {
	caller, _ := c.Locals(localsKey).(*Caller)
	return caller
}
