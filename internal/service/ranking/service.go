// Package ranking answers listing, trend, search and grouping requests over the
// stored channel records.
package ranking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	apperrors "github.com/Taichi-iskw/yt-rank/internal/errors"
	"github.com/Taichi-iskw/yt-rank/internal/logger"
	"github.com/Taichi-iskw/yt-rank/internal/model"
	"github.com/Taichi-iskw/yt-rank/internal/repository"
	"github.com/Taichi-iskw/yt-rank/internal/service/metrics"
)

// Periods
const (
	PeriodRealtime = "realtime"
	PeriodWeekly   = "weekly"
	PeriodMonthly  = "monthly"
)

const (
	DefaultPageSize       = 50
	DefaultMaxPageSize    = 200
	MaxPage               = 100_000
	DefaultTrendThreshold = 5.0
	DefaultTrendLimit     = 10
)

// RankQuery is a listing request as received from the read API
type RankQuery struct {
	Category       *string  `json:"category,omitempty"`
	Country        *string  `json:"country,omitempty"`
	MinSubscribers *int64   `json:"min_subscribers,omitempty"`
	MaxSubscribers *int64   `json:"max_subscribers,omitempty"`
	MinGrowthRate  *float64 `json:"min_growth_rate,omitempty"`
	SortBy         string   `json:"sort_by"`
	Period         string   `json:"period"`
	Page           int      `json:"page"`
	PageSize       int      `json:"page_size"`
}

// RankPage is one page of ranked channels
type RankPage struct {
	Channels []*model.Channel `json:"channels"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// Trends groups channels by weekly movement
type Trends struct {
	Rising  []*model.Channel `json:"rising"`
	Falling []*model.Channel `json:"falling"`
	New     []*model.Channel `json:"new"`
}

// SearchResult holds search matches
type SearchResult struct {
	Channels []*model.Channel `json:"channels"`
}

// Cache is the response cache used for listings and trends. Entries are
// read and written under a version taken once per request.
type Cache interface {
	Version(ctx context.Context) (int64, error)
	Get(ctx context.Context, version int64, key string, dest any) (bool, error)
	Set(ctx context.Context, version int64, key string, value any) error
}

// RankingService defines the read operations of the ranking directory
type RankingService interface {
	ListRanked(ctx context.Context, q RankQuery) (*RankPage, error)
	TrendBuckets(ctx context.Context) (*Trends, error)
	Search(ctx context.Context, query string, limit int) (*SearchResult, error)
	Channel(ctx context.Context, id int64) (*model.Channel, error)
	Groups(ctx context.Context, dimension string) ([]model.GroupCount, error)
}

// Options tunes paging and trend thresholds; zero values take defaults
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	TrendThreshold  float64
	TrendLimit      int
}

// rankingService implements RankingService
type rankingService struct {
	channels repository.ChannelRepository
	cache    Cache
	resolver HandleResolver
	opts     Options
}

// NewRankingService creates a new RankingService. cache and resolver may be nil.
func NewRankingService(channels repository.ChannelRepository, cache Cache, resolver HandleResolver, opts Options) RankingService {
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = DefaultMaxPageSize
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = DefaultPageSize
	}
	opts.DefaultPageSize = min(opts.DefaultPageSize, opts.MaxPageSize)
	if opts.TrendThreshold <= 0 {
		opts.TrendThreshold = DefaultTrendThreshold
	}
	if opts.TrendLimit <= 0 {
		opts.TrendLimit = DefaultTrendLimit
	}
	return &rankingService{channels: channels, cache: cache, resolver: resolver, opts: opts}
}

// ListRanked validates q, then returns one page of channels matching every filter
func (s *rankingService) ListRanked(ctx context.Context, q RankQuery) (*RankPage, error) {
	if err := s.normalize(&q); err != nil {
		return nil, err
	}

	column, err := sortColumn(q.SortBy, q.Period)
	if err != nil {
		return nil, err
	}

	key := listCacheKey(q)
	version, cacheable := s.cacheVersion(ctx)
	var cached RankPage
	if cacheable && s.cacheGet(ctx, version, key, &cached) {
		return &cached, nil
	}

	growthColumn := "weekly_subscriber_rate"
	if q.Period == PeriodMonthly {
		growthColumn = "monthly_subscriber_rate"
	}

	items, total, err := s.channels.Query(ctx, model.ChannelQuery{
		Filter: model.ChannelFilter{
			Category:       q.Category,
			Country:        q.Country,
			MinSubscribers: q.MinSubscribers,
			MaxSubscribers: q.MaxSubscribers,
			MinGrowthRate:  q.MinGrowthRate,
			GrowthColumn:   growthColumn,
		},
		SortColumn: column,
		Limit:      q.PageSize,
		Offset:     (q.Page - 1) * q.PageSize,
	})
	if err != nil {
		return nil, err
	}

	page := &RankPage{
		Channels: nonNil(items),
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if cacheable {
		s.cacheSet(ctx, version, key, page)
	}
	return page, nil
}

// normalize applies defaults and rejects out-of-range paging and filters
func (s *rankingService) normalize(q *RankQuery) error {
	if q.SortBy == "" {
		q.SortBy = string(metrics.BySubscribers)
	}
	if q.Period == "" {
		q.Period = PeriodRealtime
	}

	switch {
	case q.Page < 0:
		return apperrors.New(apperrors.CodeInvalidArg, "page must not be negative")
	case q.Page > MaxPage:
		return apperrors.New(apperrors.CodeInvalidArg, fmt.Sprintf("page must not exceed %d", MaxPage))
	case q.PageSize < 0:
		return apperrors.New(apperrors.CodeInvalidArg, "pageSize must not be negative")
	case q.PageSize > s.opts.MaxPageSize:
		return apperrors.New(apperrors.CodeInvalidArg, "pageSize exceeds the maximum")
	case q.MinSubscribers != nil && q.MaxSubscribers != nil && *q.MinSubscribers > *q.MaxSubscribers:
		return apperrors.New(apperrors.CodeInvalidArg, "minSubscribers is greater than maxSubscribers")
	}

	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = s.opts.DefaultPageSize
	}
	return nil
}

// sortColumn maps a sort key and period onto a repository column
func sortColumn(sortBy, period string) (string, error) {
	var weekly, monthly bool
	switch period {
	case PeriodRealtime:
	case PeriodWeekly:
		weekly = true
	case PeriodMonthly:
		monthly = true
	default:
		return "", apperrors.New(apperrors.CodeInvalidArg, "unsupported period: "+period)
	}

	switch metrics.SortKey(sortBy) {
	case metrics.BySubscribers:
		switch {
		case weekly:
			return "weekly_subscriber_delta", nil
		case monthly:
			return "monthly_subscriber_delta", nil
		}
		return "subscriber_count", nil
	case metrics.ByViews:
		switch {
		case weekly:
			return "weekly_view_delta", nil
		case monthly:
			return "monthly_view_delta", nil
		}
		return "view_count", nil
	case metrics.ByWeeklySubscribers:
		return "weekly_subscriber_delta", nil
	case metrics.ByWeeklyViews:
		return "weekly_view_delta", nil
	case metrics.ByGrowth:
		if monthly {
			return "monthly_subscriber_rate", nil
		}
		return "weekly_subscriber_rate", nil
	case metrics.ByEngagement:
		return "engagement_rate", nil
	}
	return "", apperrors.New(apperrors.CodeInvalidArg, "unsupported sortBy: "+sortBy)
}

// TrendBuckets returns rising, falling and newest channels, each capped at TrendLimit
func (s *rankingService) TrendBuckets(ctx context.Context) (*Trends, error) {
	const key = "trends"
	version, cacheable := s.cacheVersion(ctx)
	var cached Trends
	if cacheable && s.cacheGet(ctx, version, key, &cached) {
		return &cached, nil
	}

	threshold := s.opts.TrendThreshold
	limit := s.opts.TrendLimit

	rising, err := s.channels.ListByWeeklyRate(ctx, true, threshold, limit)
	if err != nil {
		return nil, err
	}
	falling, err := s.channels.ListByWeeklyRate(ctx, false, -threshold, limit)
	if err != nil {
		return nil, err
	}
	newest, err := s.channels.ListNewest(ctx, limit)
	if err != nil {
		return nil, err
	}

	trends := &Trends{
		Rising:  bucket(rising, limit, func(rate float64) bool { return rate > threshold }),
		Falling: bucket(falling, limit, func(rate float64) bool { return rate < -threshold }),
		New:     capped(nonNil(newest), limit),
	}
	if cacheable {
		s.cacheSet(ctx, version, key, trends)
	}
	return trends, nil
}

// bucket keeps candidates whose weekly subscriber rate satisfies keep, preserving order
func bucket(candidates []*model.Channel, limit int, keep func(rate float64) bool) []*model.Channel {
	out := make([]*model.Channel, 0, min(len(candidates), limit))
	for _, ch := range candidates {
		if keep(ch.WeeklySubscriberRate) {
			out = append(out, ch)
		}
	}
	return capped(out, limit)
}

// Channel returns the channel with the given ID, or nil when there is none
func (s *rankingService) Channel(ctx context.Context, id int64) (*model.Channel, error) {
	ch, err := s.channels.FindByID(ctx, id)
	if apperrors.Is(err, apperrors.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Groups counts channels per category or country
func (s *rankingService) Groups(ctx context.Context, dimension string) ([]model.GroupCount, error) {
	if dimension != repository.GroupByCategory && dimension != repository.GroupByCountry {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "unsupported grouping: "+dimension)
	}
	groups, err := s.channels.GroupBy(ctx, dimension)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []model.GroupCount{}
	}
	return groups, nil
}

// cacheVersion reports false when the cache is missing or unreachable; the
// request then neither reads nor writes it
func (s *rankingService) cacheVersion(ctx context.Context) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	version, err := s.cache.Version(ctx)
	if err != nil {
		log := logger.With("ranking")
		log.Warn().Err(err).Msg("cache version read failed")
		return 0, false
	}
	return version, true
}

func (s *rankingService) cacheGet(ctx context.Context, version int64, key string, dest any) bool {
	hit, err := s.cache.Get(ctx, version, key, dest)
	if err != nil {
		log := logger.With("ranking")
		log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return false
	}
	return hit
}

func (s *rankingService) cacheSet(ctx context.Context, version int64, key string, value any) {
	if err := s.cache.Set(ctx, version, key, value); err != nil {
		log := logger.With("ranking")
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// listCacheKey is stable for equal normalized queries
func listCacheKey(q RankQuery) string {
	data, _ := json.Marshal(q)
	sum := sha256.Sum256(data)
	return "list:" + hex.EncodeToString(sum[:12])
}

func nonNil(channels []*model.Channel) []*model.Channel {
	if channels == nil {
		return []*model.Channel{}
	}
	return channels
}

func capped(channels []*model.Channel, limit int) []*model.Channel {
	if len(channels) > limit {
		return channels[:limit]
	}
	return channels
}
