package youtube

import (
	"context"
	"time"

	"google.golang.org/api/youtube/v3"

	"github.com/Taichi-iskw/yt-rank/internal/logger"
	"github.com/Taichi-iskw/yt-rank/internal/model"
)

// sampleRecentVideos fetches the latest uploads of a channel with their statistics.
// Failures are logged and yield an empty sample.
func (s *youTubeService) sampleRecentVideos(ctx context.Context, svc *youtube.Service, item *youtube.Channel) []*model.Video {
	log := logger.With("youtube").With().Str("channel", item.Id).Logger()

	playlistID := uploadsPlaylist(item)
	if playlistID == "" {
		return nil
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	// Step 1: latest video IDs from the uploads playlist
	playlist, err := svc.PlaylistItems.List([]string{"contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(int64(s.opts.EngagementSampleSize)).
		Context(callCtx).
		Do()
	if err != nil {
		log.Warn().Err(classifyError(err, "playlistItems.list")).Msg("engagement sample skipped")
		return nil
	}

	videoIDs := make([]string, 0, len(playlist.Items))
	for _, pi := range playlist.Items {
		if pi.ContentDetails != nil && pi.ContentDetails.VideoId != "" {
			videoIDs = append(videoIDs, pi.ContentDetails.VideoId)
		}
	}
	if len(videoIDs) == 0 {
		return nil
	}

	// Step 2: statistics for those videos
	videos, err := svc.Videos.List([]string{"snippet", "statistics"}).
		Id(videoIDs...).
		Context(callCtx).
		Do()
	if err != nil {
		log.Warn().Err(classifyError(err, "videos.list")).Msg("engagement sample skipped")
		return nil
	}

	sample := make([]*model.Video, 0, len(videos.Items))
	for _, v := range videos.Items {
		sample = append(sample, toVideo(v))
	}
	return sample
}

func toVideo(v *youtube.Video) *model.Video {
	video := &model.Video{
		ID:  v.Id,
		URL: "https://www.youtube.com/watch?v=" + v.Id,
	}
	if v.Snippet != nil {
		video.Title = v.Snippet.Title
		if published, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
			published = published.UTC()
			video.PublishedAt = &published
		}
	}
	if v.Statistics != nil {
		video.ViewCount = int64(v.Statistics.ViewCount)
		video.LikeCount = int64(v.Statistics.LikeCount)
		video.CommentCount = int64(v.Statistics.CommentCount)
	}
	return video
}
