package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
)

type stubPinger struct {
	err     error
	enabled bool
}

func (s stubPinger) Ping(ctx context.Context) error { return s.err }
func (s stubPinger) Enabled() bool                  { return s.enabled }

func TestHealthHandler_Ready(t *testing.T) {
	down := errors.New("connection refused")

	tests := []struct {
		name        string
		db          Pinger
		cache       CachePinger
		wantStatus  int
		wantOverall string
		wantRedis   string
	}{
		{"all up", stubPinger{}, stubPinger{enabled: true}, http.StatusOK, "healthy", "up"},
		{"cache disabled", stubPinger{}, stubPinger{}, http.StatusOK, "healthy", "disabled"},
		{"no cache", stubPinger{}, nil, http.StatusOK, "healthy", "disabled"},
		{"cache down", stubPinger{}, stubPinger{enabled: true, err: down}, http.StatusOK, "degraded", "down"},
		{"database down", stubPinger{err: down}, stubPinger{enabled: true}, http.StatusServiceUnavailable, "unhealthy", "up"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.db, tt.cache)
			app := fiber.New()
			app.Get("/health/ready", h.Ready)

			resp, body := doGet(t, app, "/health/ready")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantOverall, body["status"])
			checks := body["checks"].(map[string]any)
			assert.Equal(t, tt.wantRedis, checks["redis"].(map[string]any)["status"])
		})
	}
}

func TestHealthHandler_Live(t *testing.T) {
	app := fiber.New()
	app.Get("/health/live", NewHealthHandler(nil, nil).Live)

	resp, body := doGet(t, app, "/health/live")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
