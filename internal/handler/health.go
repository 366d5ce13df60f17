package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
)

// Pinger is a dependency the readiness probe checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// CachePinger is an optional dependency that may be disabled
type CachePinger interface {
	Pinger
	Enabled() bool
}

type HealthHandler struct {
	db      Pinger
	cache   CachePinger
	startAt time.Time
}

func NewHealthHandler(db Pinger, cache CachePinger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		cache:   cache,
		startAt: time.Now(),
	}
}

// Live handles GET /health/live
func (h *HealthHandler) Live(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready handles GET /health/ready. The database is required; a failing cache
// only degrades the status.
func (h *HealthHandler) Ready(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	overall := "healthy"
	status := fiber.StatusOK

	database := check(ctx, h.db)
	if database["status"] != "up" {
		overall = "unhealthy"
		status = fiber.StatusServiceUnavailable
	}

	cache := fiber.Map{"status": "disabled"}
	if h.cache != nil && h.cache.Enabled() {
		cache = check(ctx, h.cache)
		if cache["status"] != "up" && overall == "healthy" {
			overall = "degraded"
		}
	}

	return c.Status(status).JSON(fiber.Map{
		"status":         overall,
		"checks":         fiber.Map{"database": database, "redis": cache},
		"uptime_seconds": int(time.Since(h.startAt).Seconds()),
	})
}

func check(ctx context.Context, p Pinger) fiber.Map {
	if p == nil {
		return fiber.Map{"status": "down", "error": "not configured"}
	}

	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return fiber.Map{
			"status":     "down",
			"latency_ms": latency,
			"error":      "connection failed",
		}
	}
	return fiber.Map{
		"status":     "up",
		"latency_ms": latency,
	}
}
