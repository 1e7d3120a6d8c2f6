package server

import (
	"time"

	"github.com/hedeshawqiomer/my-app-backend/internal/auth"
	"github.com/hedeshawqiomer/my-app-backend/internal/config"
	"github.com/hedeshawqiomer/my-app-backend/internal/geo"
	"github.com/hedeshawqiomer/my-app-backend/internal/image"
	"github.com/hedeshawqiomer/my-app-backend/internal/post"
	"github.com/hedeshawqiomer/my-app-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Files    storage.Store
	Sessions *auth.Sessions
}

func NewServer(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client, files storage.Store) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 5 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       pool,
		Redis:    redisClient,
		Files:    files,
		Sessions: auth.NewSessions(redisClient, time.Duration(cfg.SessionTTLHours)*time.Hour),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if disk, ok := s.Files.(*storage.Disk); ok {
		s.App.Static("/uploads", disk.Dir())
	}

	s.App.Use(auth.Middleware(s.Sessions, s.Cfg.SessionName))

	taxonomy := geo.DefaultTaxonomy()

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.DB, s.Sessions, s.Cfg.AllowedAdmins), s.Cfg.SessionName)

	posts := s.App.Group("/posts")
	post.RegisterRoutes(posts, post.NewService(s.DB, s.Files, taxonomy))
	image.RegisterRoutes(posts, image.NewService(s.DB, s.Files))
}
