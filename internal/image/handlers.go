package image

import (
	"github.com/hedeshawqiomer/my-app-backend/internal/apperr"
	"github.com/hedeshawqiomer/my-app-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the image removal endpoints under the posts group.
func RegisterRoutes(r fiber.Router, svc *Service) {
	// DELETE /posts/:id/images?url=/uploads/abc.jpg
	r.Delete("/:id/images", func(c *fiber.Ctx) error {
		rawURL := c.Query("url")
		if rawURL == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing url")
		}
		removed, err := svc.RemoveByLocator(c.Context(), auth.IdentityFromCtx(c), c.Params("id"), rawURL)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(fiber.Map{"ok": true, "removed": removed})
	})

	// DELETE /posts/:id/images/:imageId
	r.Delete("/:id/images/:imageId", func(c *fiber.Ctx) error {
		removed, err := svc.RemoveByID(c.Context(), auth.IdentityFromCtx(c), c.Params("id"), c.Params("imageId"))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(fiber.Map{"ok": true, "removed": removed})
	})

	// POST /posts/:id/images/delete  {"ids":[],"urls":[]}
	r.Post("/:id/images/delete", func(c *fiber.Ctx) error {
		var body struct {
			IDs  []string `json:"ids"`
			URLs []string `json:"urls"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		removed, err := svc.RemoveBulk(c.Context(), auth.IdentityFromCtx(c), c.Params("id"), body.IDs, body.URLs)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(fiber.Map{"ok": true, "removed": removed})
	})
}
