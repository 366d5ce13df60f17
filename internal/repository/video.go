package repository

import (
	"context"

	"github.com/Taichi-iskw/yt-rank/internal/model"
)

// VideoRepository defines operations for sampled video persistence
type VideoRepository interface {
	// UpsertBatch inserts unseen videos with COPY FROM and refreshes the stats of known ones
	UpsertBatch(ctx context.Context, videos []*model.Video) error

	// GetByChannelID retrieves a channel's videos, newest first, with pagination
	GetByChannelID(ctx context.Context, channelID int64, limit, offset int) ([]*model.Video, error)
}
