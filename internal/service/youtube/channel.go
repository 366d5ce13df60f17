package youtube

import (
	"context"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/youtube/v3"

	apperrors "github.com/Taichi-iskw/yt-rank/internal/errors"
	"github.com/Taichi-iskw/yt-rank/internal/model"
)

var channelParts = []string{"snippet", "statistics", "topicDetails", "contentDetails"}

// FetchBatch issues one channels.list request for up to MaxBatchSize IDs
func (s *youTubeService) FetchBatch(ctx context.Context, ids []string, cred model.Credential) ([]*model.ChannelStats, error) {
	if len(ids) == 0 {
		return []*model.ChannelStats{}, nil
	}
	if len(ids) > MaxBatchSize {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "at most 50 channel IDs per request")
	}

	svc, err := s.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	resp, err := svc.Channels.List(channelParts).
		Id(ids...).
		MaxResults(MaxBatchSize).
		Context(callCtx).
		Do()
	if err != nil {
		return nil, classifyError(err, "channels.list")
	}

	stats := make([]*model.ChannelStats, 0, len(resp.Items))
	for _, item := range resp.Items {
		st := toChannelStats(item)
		if s.opts.EngagementSampleSize > 0 {
			st.RecentVideos = s.sampleRecentVideos(ctx, svc, item)
		}
		stats = append(stats, st)
	}

	return stats, nil
}

// ResolveHandle looks up a channel ID by its @handle
func (s *youTubeService) ResolveHandle(ctx context.Context, handle string, cred model.Credential) (string, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || handle == "@" {
		return "", apperrors.New(apperrors.CodeInvalidArg, "handle is required")
	}
	if !strings.HasPrefix(handle, "@") {
		handle = "@" + handle
	}

	svc, err := s.service(ctx, cred)
	if err != nil {
		return "", err
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	resp, err := svc.Channels.List([]string{"id"}).
		ForHandle(handle).
		Context(callCtx).
		Do()
	if err != nil {
		return "", classifyError(err, "channels.list forHandle")
	}
	if len(resp.Items) == 0 {
		return "", apperrors.New(apperrors.CodeNotFound, "no channel for handle "+handle)
	}

	return resp.Items[0].Id, nil
}

func toChannelStats(item *youtube.Channel) *model.ChannelStats {
	st := &model.ChannelStats{
		ExternalID: item.Id,
		Category:   model.DefaultCategory,
	}

	if sn := item.Snippet; sn != nil {
		st.Name = sn.Title
		st.Handle = sn.CustomUrl
		st.Description = sn.Description
		st.Country = strings.ToUpper(sn.Country)
		st.ProfileImage = bestThumbnail(sn.Thumbnails)
		if published, err := time.Parse(time.RFC3339, sn.PublishedAt); err == nil {
			published = published.UTC()
			st.CreatedAt = &published
		}
	}

	if stats := item.Statistics; stats != nil {
		st.SubscriberCount = int64(stats.SubscriberCount)
		st.SubscribersHidden = stats.HiddenSubscriberCount
		st.ViewCount = int64(stats.ViewCount)
		st.VideoCount = int64(stats.VideoCount)
	}

	if td := item.TopicDetails; td != nil && len(td.TopicCategories) > 0 {
		st.Category = categoryFromTopic(td.TopicCategories[0])
	}

	return st
}

// categoryFromTopic turns a Wikipedia topic URL into a category name,
// e.g. https://en.wikipedia.org/wiki/Video_game_culture -> "Video game culture"
func categoryFromTopic(topicURL string) string {
	u, err := url.Parse(topicURL)
	if err != nil {
		return model.DefaultCategory
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	if unescaped, err := url.PathUnescape(last); err == nil {
		last = unescaped
	}

	return model.CategoryName(strings.ReplaceAll(last, "_", " "))
}

func bestThumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

// uploadsPlaylist returns the channel's uploads playlist ID, if reported
func uploadsPlaylist(item *youtube.Channel) string {
	if item.ContentDetails == nil || item.ContentDetails.RelatedPlaylists == nil {
		return ""
	}
	return item.ContentDetails.RelatedPlaylists.Uploads
}
