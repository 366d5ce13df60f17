package model

import "time"

// ChannelUpsert carries everything written for one channel in a single refresh
type ChannelUpsert struct {
	Stats      *ChannelStats
	CategoryID *int64

	Weekly  Change
	Monthly Change

	// nil keeps the stored engagement rate
	EngagementRate *float64

	ObservedAt time.Time
}

// Change is a period-relative delta of subscribers and views
type Change struct {
	SubscriberDelta int64   `json:"subscriber_delta"`
	SubscriberRate  float64 `json:"subscriber_rate"`
	ViewDelta       int64   `json:"view_delta"`
	ViewRate        float64 `json:"view_rate"`
}

// ChannelFilter holds the conjunctive listing predicates; nil fields are no-ops
type ChannelFilter struct {
	Category       *string
	Country        *string
	MinSubscribers *int64
	MaxSubscribers *int64
	MinGrowthRate  *float64

	// GrowthColumn is the rate column MinGrowthRate applies to
	GrowthColumn string
}

// ChannelQuery is a validated listing request handed to the repository
type ChannelQuery struct {
	Filter     ChannelFilter
	SortColumn string
	Limit      int
	Offset     int
}

// GroupCount is one row of a grouping aggregation
type GroupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// RankUpdate is a computed rank written back after a collection run
type RankUpdate struct {
	ChannelID  int64
	Rank       int
	RankChange int
}
