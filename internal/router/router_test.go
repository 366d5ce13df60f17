package router

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Taichi-iskw/yt-rank/internal/handler"
	"github.com/Taichi-iskw/yt-rank/internal/model"
	"github.com/Taichi-iskw/yt-rank/internal/service/ranking"
	"github.com/Taichi-iskw/yt-rank/internal/telemetry"
)

type stubRanking struct{}

func (stubRanking) ListRanked(ctx context.Context, q ranking.RankQuery) (*ranking.RankPage, error) {
	return &ranking.RankPage{Channels: []*model.Channel{}, Page: 1, PageSize: 50}, nil
}

func (stubRanking) TrendBuckets(ctx context.Context) (*ranking.Trends, error) {
	return &ranking.Trends{Rising: []*model.Channel{}, Falling: []*model.Channel{}, New: []*model.Channel{}}, nil
}

func (stubRanking) Search(ctx context.Context, query string, limit int) (*ranking.SearchResult, error) {
	return &ranking.SearchResult{Channels: []*model.Channel{}}, nil
}

func (stubRanking) Channel(ctx context.Context, id int64) (*model.Channel, error) {
	if id == 1 {
		return &model.Channel{ID: 1}, nil
	}
	return nil, nil
}

func (stubRanking) Groups(ctx context.Context, dimension string) ([]model.GroupCount, error) {
	return []model.GroupCount{}, nil
}

type stubVideos struct{}

func (stubVideos) UpsertBatch(ctx context.Context, videos []*model.Video) error { return nil }

func (stubVideos) GetByChannelID(ctx context.Context, channelID int64, limit, offset int) ([]*model.Video, error) {
	return nil, nil
}

type upPinger struct{}

func (upPinger) Ping(ctx context.Context) error { return nil }

func newApp() *fiber.App {
	app := fiber.New()
	Setup(app, &Handlers{
		Channel: handler.NewChannelHandler(stubRanking{}),
		Video:   handler.NewVideoHandler(stubVideos{}),
		Health:  handler.NewHealthHandler(upPinger{}, nil),
	}, telemetry.New(nil), "https://example.com")
	return app
}

func TestSetup_Routes(t *testing.T) {
	app := newApp()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health/live", fiber.StatusOK},
		{"GET", "/health/ready", fiber.StatusOK},
		{"GET", "/metrics", fiber.StatusOK},
		{"GET", "/api/channels", fiber.StatusOK},
		{"GET", "/api/channels/1", fiber.StatusOK},
		{"GET", "/api/channels/2", fiber.StatusNotFound},
		{"GET", "/api/channels/1/videos", fiber.StatusOK},
		{"GET", "/api/trends", fiber.StatusOK},
		{"GET", "/api/search?q=ab", fiber.StatusOK},
		{"GET", "/api/stats/groups", fiber.StatusOK},
		{"GET", "/api/unknown", fiber.StatusNotFound},
		{"POST", "/api/channels", fiber.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(tt.method, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestSetup_CORS(t *testing.T) {
	app := newApp()

	req := httptest.NewRequest("GET", "/api/channels", nil)
	req.Header.Set("Origin", "https://example.com")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSetup_RecoversFromPanics(t *testing.T) {
	app := newApp()
	app.Get("/boom", func(c fiber.Ctx) error { panic("boom") })

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	_, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
}
