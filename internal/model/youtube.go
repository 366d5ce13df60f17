package model

import (
	"strings"
	"time"
)

// Channel represents a tracked YouTube channel with its current and derived metrics
type Channel struct {
	ID           int64  `json:"id" db:"id"`
	ExternalID   string `json:"external_id" db:"external_id"`
	Name         string `json:"name" db:"name"`
	Handle       string `json:"handle" db:"handle"`
	ProfileImage string `json:"profile_image" db:"profile_image"`
	Description  string `json:"description" db:"description"`
	Country      string `json:"country" db:"country"`
	CategoryID   *int64 `json:"category_id,omitempty" db:"category_id"`
	Category     string `json:"category" db:"category"`

	// Point-in-time counts, overwritten on every refresh
	SubscriberCount int64 `json:"subscriber_count" db:"subscriber_count"`
	ViewCount       int64 `json:"view_count" db:"view_count"`
	VideoCount      int64 `json:"video_count" db:"video_count"`

	// Derived from snapshots, recomputed on every refresh
	WeeklySubscriberDelta  int64   `json:"weekly_subscriber_delta" db:"weekly_subscriber_delta"`
	WeeklySubscriberRate   float64 `json:"weekly_subscriber_rate" db:"weekly_subscriber_rate"`
	WeeklyViewDelta        int64   `json:"weekly_view_delta" db:"weekly_view_delta"`
	WeeklyViewRate         float64 `json:"weekly_view_rate" db:"weekly_view_rate"`
	MonthlySubscriberDelta int64   `json:"monthly_subscriber_delta" db:"monthly_subscriber_delta"`
	MonthlySubscriberRate  float64 `json:"monthly_subscriber_rate" db:"monthly_subscriber_rate"`
	MonthlyViewDelta       int64   `json:"monthly_view_delta" db:"monthly_view_delta"`
	MonthlyViewRate        float64 `json:"monthly_view_rate" db:"monthly_view_rate"`
	EngagementRate         float64 `json:"engagement_rate" db:"engagement_rate"`
	Rank                   int     `json:"rank" db:"current_rank"`
	RankChange             int     `json:"rank_change" db:"rank_change"`

	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"` // account creation on YouTube
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`               // first seen by us
	LastUpdated *time.Time `json:"last_updated,omitempty" db:"last_updated"`
}

// Category groups channels; created lazily by the collector
type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// DefaultCategory is used when the source does not classify a channel
const DefaultCategory = "Other"

// CategoryName normalises a source category, mapping blanks to DefaultCategory
func CategoryName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return DefaultCategory
	}
	return name
}

// Snapshot is the subscriber and view count of a channel observed at a point in time
type Snapshot struct {
	ChannelID       int64     `json:"channel_id" db:"channel_id"`
	SubscriberCount int64     `json:"subscriber_count" db:"subscriber_count"`
	ViewCount       int64     `json:"view_count" db:"view_count"`
	ObservedAt      time.Time `json:"observed_at" db:"observed_at"`
	Rank            int       `json:"rank" db:"rank"` // subscriber rank on the snapshot's day; 0 before the first ranking
}

// Video represents a recent upload sampled for engagement
type Video struct {
	ID           string     `json:"id" db:"id"`
	ChannelID    int64      `json:"channel_id" db:"channel_id"`
	Title        string     `json:"title" db:"title"`
	URL          string     `json:"url" db:"url"`
	ViewCount    int64      `json:"view_count" db:"view_count"`
	LikeCount    int64      `json:"like_count" db:"like_count"`
	CommentCount int64      `json:"comment_count" db:"comment_count"`
	PublishedAt  *time.Time `json:"published_at,omitempty" db:"published_at"`
}

// ChannelStats is what the external source reports for one channel
type ChannelStats struct {
	ExternalID      string
	Name            string
	Handle          string
	ProfileImage    string
	Description     string
	Country         string
	Category        string
	SubscriberCount int64
	ViewCount       int64
	VideoCount      int64
	CreatedAt       *time.Time

	// The owner hides the subscriber count; SubscriberCount is then meaningless
	SubscribersHidden bool

	// Engagement sample over recent uploads; empty when sampling is disabled
	RecentVideos []*Video
}

// HasEngagementSample reports whether the source sampled recent uploads
func (s *ChannelStats) HasEngagementSample() bool {
	return len(s.RecentVideos) > 0
}

// EngagementTotals sums likes, comments and views over the sampled uploads
func (s *ChannelStats) EngagementTotals() (likes, comments, views int64) {
	for _, v := range s.RecentVideos {
		likes += v.LikeCount
		comments += v.CommentCount
		views += v.ViewCount
	}
	return likes, comments, views
}

// Credential is an API key the collector may spend quota on
type Credential struct {
	Name   string `json:"name"`
	APIKey string `json:"-"`
}
