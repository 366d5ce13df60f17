package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"

	apperrors "github.com/Taichi-iskw/yt-rank/internal/errors"
	"github.com/Taichi-iskw/yt-rank/internal/logger"
	"github.com/Taichi-iskw/yt-rank/internal/middleware"
	"github.com/Taichi-iskw/yt-rank/internal/model"
	"github.com/Taichi-iskw/yt-rank/internal/repository"
	"github.com/Taichi-iskw/yt-rank/internal/service/ranking"
)

type ChannelHandler struct {
	svc ranking.RankingService
}

func NewChannelHandler(svc ranking.RankingService) *ChannelHandler {
	return &ChannelHandler{svc: svc}
}

// List handles GET /api/channels
func (h *ChannelHandler) List(c fiber.Ctx) error {
	q, err := parseRankQuery(c)
	if err != nil {
		return middleware.AppErrorResponse(c, err)
	}

	page, err := h.svc.ListRanked(c.Context(), q)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeInvalidArg) {
			return middleware.AppErrorResponse(c, err)
		}
		// Listing degrades to an empty page rather than failing the page render
		log := logger.With("handler")
		log.Error().Err(err).Msg("ranked listing failed")
		return c.JSON(ranking.RankPage{Channels: []*model.Channel{}, Page: max(q.Page, 1), PageSize: q.PageSize})
	}

	return c.JSON(page)
}

// Get handles GET /api/channels/:id
func (h *ChannelHandler) Get(c fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, apperrors.CodeInvalidArg, "id must be a positive integer")
	}

	ch, err := h.svc.Channel(c.Context(), id)
	if err != nil {
		return middleware.AppErrorResponse(c, err)
	}
	if ch == nil {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, apperrors.CodeNotFound, "Channel not found")
	}

	return c.JSON(ch)
}

// Trends handles GET /api/trends
func (h *ChannelHandler) Trends(c fiber.Ctx) error {
	trends, err := h.svc.TrendBuckets(c.Context())
	if err != nil {
		log := logger.With("handler")
		log.Error().Err(err).Msg("trend buckets failed")
		empty := []*model.Channel{}
		return c.JSON(ranking.Trends{Rising: empty, Falling: empty, New: empty})
	}
	return c.JSON(trends)
}

// Search handles GET /api/search?q=
func (h *ChannelHandler) Search(c fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, apperrors.CodeInvalidArg, "limit must be an integer")
		}
		limit = n
	}

	result, err := h.svc.Search(c.Context(), c.Query("q"), limit)
	if err != nil {
		log := logger.With("handler")
		log.Error().Err(err).Msg("search failed")
		return c.JSON(ranking.SearchResult{Channels: []*model.Channel{}})
	}
	return c.JSON(result)
}

// Groups handles GET /api/stats/groups?by=category|country
func (h *ChannelHandler) Groups(c fiber.Ctx) error {
	by := c.Query("by", repository.GroupByCategory)

	groups, err := h.svc.Groups(c.Context(), by)
	if err != nil {
		return middleware.AppErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"by": by, "groups": groups})
}

// parseRankQuery reads listing parameters; malformed numbers are INVALID_ARGUMENT
func parseRankQuery(c fiber.Ctx) (ranking.RankQuery, error) {
	q := ranking.RankQuery{
		SortBy: c.Query("sortBy"),
		Period: c.Query("period"),
	}

	if v := strings.TrimSpace(c.Query("category")); v != "" {
		q.Category = &v
	}
	if v := strings.TrimSpace(c.Query("country")); v != "" {
		q.Country = &v
	}

	var err error
	if q.Page, err = intParam(c, "page"); err != nil {
		return q, err
	}
	if q.PageSize, err = intParam(c, "pageSize"); err != nil {
		return q, err
	}
	if q.MinSubscribers, err = int64Param(c, "minSubscribers"); err != nil {
		return q, err
	}
	if q.MaxSubscribers, err = int64Param(c, "maxSubscribers"); err != nil {
		return q, err
	}
	if raw := c.Query("minGrowthRate"); raw != "" {
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			return q, apperrors.New(apperrors.CodeInvalidArg, "minGrowthRate must be a number")
		}
		q.MinGrowthRate = &v
	}

	return q, nil
}

func intParam(c fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.New(apperrors.CodeInvalidArg, name+" must be an integer")
	}
	return n, nil
}

func int64Param(c fiber.Ctx, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeInvalidArg, name+" must be an integer")
	}
	return &n, nil
}
