package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	apperrors "github.com/Taichi-iskw/yt-rank/internal/errors"
	"github.com/Taichi-iskw/yt-rank/internal/middleware"
	"github.com/Taichi-iskw/yt-rank/internal/model"
	"github.com/Taichi-iskw/yt-rank/internal/repository"
)

const maxVideoPage = 50

type VideoHandler struct {
	videos repository.VideoRepository
}

func NewVideoHandler(videos repository.VideoRepository) *VideoHandler {
	return &VideoHandler{videos: videos}
}

// ListByChannel handles GET /api/channels/:id/videos
func (h *VideoHandler) ListByChannel(c fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, apperrors.CodeInvalidArg, "id must be a positive integer")
	}

	limit, err := intParam(c, "limit")
	if err != nil {
		return middleware.AppErrorResponse(c, err)
	}
	if limit <= 0 || limit > maxVideoPage {
		limit = maxVideoPage
	}
	offset, err := intParam(c, "offset")
	if err != nil || offset < 0 {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, apperrors.CodeInvalidArg, "offset must be a non-negative integer")
	}

	videos, err := h.videos.GetByChannelID(c.Context(), id, limit, offset)
	if err != nil {
		return middleware.AppErrorResponse(c, err)
	}
	if videos == nil {
		videos = []*model.Video{}
	}
	return c.JSON(fiber.Map{"videos": videos})
}
