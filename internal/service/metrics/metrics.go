// Package metrics derives period-relative indicators from raw channel counts.
// Every function here is pure: no I/O and no mutation of its inputs.
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/Taichi-iskw/yt-rank/internal/model"
)

const (
	// WeekWindow is the look-back for weekly deltas
	WeekWindow = 7 * 24 * time.Hour
	// MonthWindow is the look-back for monthly deltas
	MonthWindow = 30 * 24 * time.Hour
)

// Counts is a pair of current subscriber and view totals
type Counts struct {
	Subscribers int64
	Views       int64
}

// ComputeWeeklyChange returns the week-over-week change against previous.
// A missing previous snapshot, or one observed on a later UTC day than a week
// before observedAt, yields zero deltas.
func ComputeWeeklyChange(current Counts, previous *model.Snapshot, observedAt time.Time) model.Change {
	return ComputeChange(current, previous, observedAt, WeekWindow)
}

// ComputeChange is ComputeWeeklyChange for an arbitrary window. Snapshots are
// kept one per UTC day, so the window is compared in whole days.
func ComputeChange(current Counts, previous *model.Snapshot, observedAt time.Time, window time.Duration) model.Change {
	if previous == nil || Day(previous.ObservedAt).After(BaselineDay(observedAt, window)) {
		return model.Change{}
	}

	subDelta := current.Subscribers - previous.SubscriberCount
	viewDelta := current.Views - previous.ViewCount

	return model.Change{
		SubscriberDelta: subDelta,
		SubscriberRate:  percent(subDelta, previous.SubscriberCount),
		ViewDelta:       viewDelta,
		ViewRate:        percent(viewDelta, previous.ViewCount),
	}
}

// Day truncates t to the start of its UTC calendar day
func Day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// BaselineDay is the latest UTC day a baseline for window may be observed on
func BaselineDay(observedAt time.Time, window time.Duration) time.Time {
	return Day(observedAt.Add(-window))
}

// ComputeEngagementRate returns (likes + comments) / views as a percentage, never negative
func ComputeEngagementRate(likeCount, commentCount, viewCount int64) float64 {
	if viewCount <= 0 {
		return 0
	}
	rate := float64(likeCount+commentCount) * 100 / float64(max(viewCount, 1))
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0
	}
	return rate
}

// RankChange is positive when a channel moved up; 0 when there is no previous rank
func RankChange(previousRank, currentRank int) int {
	if previousRank <= 0 {
		return 0
	}
	return previousRank - currentRank
}

// SortKey selects the value channels are ranked by
type SortKey string

const (
	BySubscribers       SortKey = "subscribers"
	ByViews             SortKey = "views"
	ByWeeklySubscribers SortKey = "subscribers-weekly"
	ByWeeklyViews       SortKey = "views-weekly"
	ByGrowth            SortKey = "growth"
	ByEngagement        SortKey = "engagement"
)

// Value extracts the ranking value of a channel for key
func Value(ch *model.Channel, key SortKey) float64 {
	switch key {
	case ByViews:
		return float64(ch.ViewCount)
	case ByWeeklySubscribers:
		return float64(ch.WeeklySubscriberDelta)
	case ByWeeklyViews:
		return float64(ch.WeeklyViewDelta)
	case ByGrowth:
		return ch.WeeklySubscriberRate
	case ByEngagement:
		return ch.EngagementRate
	default:
		return float64(ch.SubscriberCount)
	}
}

// ComputeRank orders channels descending by key and assigns ranks 1..N.
// The Rank already set on each input is read as its baseline rank, so ranking
// the same inputs twice gives the same RankChange. Equal values
// keep their input order. The returned channels are copies.
func ComputeRank(channels []*model.Channel, key SortKey) []*model.Channel {
	ranked := make([]*model.Channel, len(channels))
	for i, ch := range channels {
		c := *ch
		ranked[i] = &c
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return Value(ranked[i], key) > Value(ranked[j], key)
	})

	for i, ch := range ranked {
		previous := ch.Rank
		ch.Rank = i + 1
		ch.RankChange = RankChange(previous, ch.Rank)
	}
	return ranked
}

func percent(delta, base int64) float64 {
	if base == 0 {
		return 0
	}
	rate := float64(delta) * 100 / float64(base)
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0
	}
	return rate
}
