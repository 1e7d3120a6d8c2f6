package auth

import (
	"time"

	"github.com/hedeshawqiomer/my-app-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, cookieName string) {
	r.Post("/login", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "email and password required")
		}

		id, token, err := svc.Login(c.Context(), req)
		if err != nil {
			return apperr.ToFiber(err)
		}

		c.Cookie(&fiber.Cookie{
			Name:     cookieName,
			Value:    token,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Expires:  time.Now().Add(svc.sessions.TTL()),
		})
		return c.JSON(id)
	})

	r.Get("/me", func(c *fiber.Ctx) error {
		id := IdentityFromCtx(c)
		if id.IsAnonymous() {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		return c.JSON(id)
	})

	r.Post("/logout", func(c *fiber.Ctx) error {
		token := c.Cookies(cookieName)
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		if err := svc.Logout(c.Context(), token); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "logout failed")
		}
		c.Cookie(&fiber.Cookie{
			Name:     cookieName,
			Value:    "",
			HTTPOnly: true,
			Expires:  time.Now().Add(-time.Hour),
		})
		return c.JSON(fiber.Map{"ok": true})
	})
}
