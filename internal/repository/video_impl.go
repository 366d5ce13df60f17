package repository

import (
	"context"

	"github.com/Taichi-iskw/yt-rank/internal/model"
	"github.com/jackc/pgx/v5"
)

var videoCopyColumns = []string{"id", "channel_id", "title", "url", "view_count", "like_count", "comment_count", "published_at"}

// videoRepository implements VideoRepository using PostgreSQL
type videoRepository struct {
	pool Pool
}

// NewVideoRepository creates a new instance of VideoRepository
func NewVideoRepository(pool Pool) VideoRepository {
	return &videoRepository{
		pool: pool,
	}
}

// UpsertBatch splits videos into new and known IDs and writes each group in one round trip
func (r *videoRepository) UpsertBatch(ctx context.Context, videos []*model.Video) error {
	if len(videos) == 0 {
		return nil
	}

	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}

	// Step 1: Get existing video IDs
	rows, err := r.pool.Query(ctx, "SELECT id FROM videos WHERE id = ANY($1)", ids)
	if err != nil {
		return handlePostgreSQLError(err, "failed to get existing video IDs")
	}
	defer rows.Close()

	existingIDs := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return handlePostgreSQLError(err, "failed to scan video ID")
		}
		existingIDs[id] = true
	}
	if err := rows.Err(); err != nil {
		return handlePostgreSQLError(err, "failed to iterate existing video IDs")
	}
	rows.Close()

	// Step 2: Partition
	var newVideos, knownVideos []*model.Video
	for _, v := range videos {
		if existingIDs[v.ID] {
			knownVideos = append(knownVideos, v)
		} else {
			newVideos = append(newVideos, v)
		}
	}

	// Step 3: COPY FROM for new videos
	if len(newVideos) > 0 {
		_, err := r.pool.CopyFrom(ctx, pgx.Identifier{"videos"}, videoCopyColumns,
			pgx.CopyFromSlice(len(newVideos), func(i int) ([]any, error) {
				v := newVideos[i]
				return []any{v.ID, v.ChannelID, v.Title, v.URL, v.ViewCount, v.LikeCount, v.CommentCount, v.PublishedAt}, nil
			}))
		if err != nil {
			return handlePostgreSQLError(err, "failed to insert videos")
		}
	}

	// Step 4: Refresh counts of known videos
	if len(knownVideos) > 0 {
		knownIDs := make([]string, len(knownVideos))
		titles := make([]string, len(knownVideos))
		views := make([]int64, len(knownVideos))
		likes := make([]int64, len(knownVideos))
		comments := make([]int64, len(knownVideos))
		for i, v := range knownVideos {
			knownIDs[i] = v.ID
			titles[i] = v.Title
			views[i] = v.ViewCount
			likes[i] = v.LikeCount
			comments[i] = v.CommentCount
		}

		sql := `UPDATE videos AS v SET title = u.title, view_count = u.view_count,
		like_count = u.like_count, comment_count = u.comment_count, updated_at = NOW()
		FROM unnest($1::text[], $2::text[], $3::bigint[], $4::bigint[], $5::bigint[])
			AS u(id, title, view_count, like_count, comment_count)
		WHERE v.id = u.id`
		if _, err := r.pool.Exec(ctx, sql, knownIDs, titles, views, likes, comments); err != nil {
			return handlePostgreSQLError(err, "failed to update videos")
		}
	}

	return nil
}

// GetByChannelID retrieves videos by channel ID with pagination
func (r *videoRepository) GetByChannelID(ctx context.Context, channelID int64, limit, offset int) ([]*model.Video, error) {
	sql := `SELECT id, channel_id, title, url, view_count, like_count, comment_count, published_at
	FROM videos WHERE channel_id = $1
	ORDER BY published_at DESC NULLS LAST, id ASC
	LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, sql, channelID, limit, offset)
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to get videos by channel ID")
	}
	defer rows.Close()

	videos := []*model.Video{}
	for rows.Next() {
		var video model.Video
		err := rows.Scan(&video.ID, &video.ChannelID, &video.Title, &video.URL,
			&video.ViewCount, &video.LikeCount, &video.CommentCount, &video.PublishedAt)
		if err != nil {
			return nil, handlePostgreSQLError(err, "failed to scan video row")
		}
		videos = append(videos, &video)
	}

	if err := rows.Err(); err != nil {
		return nil, handlePostgreSQLError(err, "failed to iterate video rows")
	}

	return videos, nil
}
