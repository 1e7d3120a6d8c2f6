package auth

import (
	"github.com/gofiber/fiber/v2"
)

const identityLocal = "identity"

// Middleware resolves the session cookie to an identity in locals. It never
// rejects: an absent or stale session just leaves the request anonymous, and
// the authorization gate decides what anonymous may do.
func Middleware(sessions *Sessions, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(cookieName)
		if token != "" {
			if id, ok, err := sessions.Get(c.Context(), token); err == nil && ok {
				c.Locals(identityLocal, id)
			}
		}
		return c.Next()
	}
}

// IdentityFromCtx returns the resolved identity, or the anonymous zero value.
func IdentityFromCtx(c *fiber.Ctx) Identity {
	if id, ok := c.Locals(identityLocal).(Identity); ok {
		return id
	}
	return Identity{}
}
