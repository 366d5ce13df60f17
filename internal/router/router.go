package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/Taichi-iskw/yt-rank/internal/handler"
	"github.com/Taichi-iskw/yt-rank/internal/middleware"
	"github.com/Taichi-iskw/yt-rank/internal/telemetry"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Channel *handler.ChannelHandler
	Video   *handler.VideoHandler
	Health  *handler.HealthHandler
}

// Setup configures the middleware stack and all API routes on the given Fiber app.
func Setup(app *fiber.App, h *Handlers, tel *telemetry.Telemetry, corsOrigins string) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger())
	app.Use(tel.Middleware())
	app.Use(middleware.NewCORS(corsOrigins))

	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", tel.Handler())

	api := app.Group("/api")

	// Channel routes
	api.Get("/channels", h.Channel.List)
	api.Get("/channels/:id", h.Channel.Get)
	api.Get("/channels/:id/videos", h.Video.ListByChannel)

	api.Get("/trends", h.Channel.Trends)
	api.Get("/search", h.Channel.Search)
	api.Get("/stats/groups", h.Channel.Groups)
}
