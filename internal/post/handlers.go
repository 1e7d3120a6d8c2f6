package post

import (
	"github.com/hedeshawqiomer/my-app-backend/internal/apperr"
	"github.com/hedeshawqiomer/my-app-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// MaxImages caps one submission; matches the historical upload limit.
const MaxImages = 10

func RegisterRoutes(r fiber.Router, svc *Service) {
	// public create with multipart images
	r.Post("/", func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "multipart form required")
		}
		files := form.File["images"]
		if len(files) > MaxImages {
			return fiber.NewError(fiber.StatusBadRequest, "too many images (max 10)")
		}

		input := CreateInput{
			Name:     c.FormValue("name"),
			Email:    c.FormValue("email"),
			City:     c.FormValue("city"),
			District: c.FormValue("district"),
			Location: c.FormValue("location"),
		}

		uploads := make([]ImageUpload, 0, len(files))
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "unreadable image upload")
			}
			defer f.Close()
			uploads = append(uploads, ImageUpload{Filename: fh.Filename, Reader: f})
		}

		created, err := svc.Create(c.Context(), auth.IdentityFromCtx(c), input, uploads)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	// reviewer listing; the gate decides which status filters the role may see
	r.Get("/", func(c *fiber.Ctx) error {
		filter := ListFilter{Status: c.Query("status"), City: c.Query("city")}
		posts, err := svc.List(c.Context(), auth.IdentityFromCtx(c), filter)
		if err != nil {
			return apperr.ToFiber(err)
		}
		if posts == nil {
			posts = []Post{}
		}
		return c.JSON(posts)
	})

	// open listing of accepted posts
	r.Get("/public", func(c *fiber.Ctx) error {
		posts, err := svc.ListPublic(c.Context(), c.Query("city"))
		if err != nil {
			return apperr.ToFiber(err)
		}
		if posts == nil {
			posts = []Post{}
		}
		return c.JSON(posts)
	})

	r.Post("/:id/accept", func(c *fiber.Ctx) error {
		accepted, err := svc.Accept(c.Context(), auth.IdentityFromCtx(c), c.Params("id"))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(accepted)
	})

	r.Patch("/:id", func(c *fiber.Ctx) error {
		var patch UpdateInput
		if err := c.BodyParser(&patch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		updated, err := svc.Update(c.Context(), auth.IdentityFromCtx(c), c.Params("id"), patch)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(updated)
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), auth.IdentityFromCtx(c), c.Params("id")); err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(fiber.Map{"ok": true})
	})
}
