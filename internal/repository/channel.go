package repository

import (
	"context"
	"time"

	"github.com/Taichi-iskw/yt-rank/internal/model"
)

// Grouping dimensions accepted by GroupBy
const (
	GroupByCategory = "category"
	GroupByCountry  = "country"
)

// ChannelRepository defines persistence of channels and their snapshots
type ChannelRepository interface {
	// Upsert creates or updates a channel by external ID and records the day's snapshot.
	// The returned bool is true when the channel was created.
	Upsert(ctx context.Context, in *model.ChannelUpsert) (*model.Channel, bool, error)

	// FindByID retrieves a channel by its internal ID
	FindByID(ctx context.Context, id int64) (*model.Channel, error)

	// FindByExternalID retrieves a channel by its YouTube channel ID
	FindByExternalID(ctx context.Context, externalID string) (*model.Channel, error)

	// Query returns one page of filtered, sorted channels and the total match count
	Query(ctx context.Context, q model.ChannelQuery) ([]*model.Channel, int, error)

	// GroupBy counts channels per category or country
	GroupBy(ctx context.Context, dimension string) ([]model.GroupCount, error)

	// FindStale returns external IDs not refreshed after the UTC day of before,
	// never-refreshed first
	FindStale(ctx context.Context, before time.Time, limit int) ([]string, error)

	// Search matches name or handle case-insensitively
	Search(ctx context.Context, term string, limit int) ([]*model.Channel, error)

	// ListByWeeklyRate returns channels whose weekly subscriber rate is above
	// (or below) threshold, most extreme first
	ListByWeeklyRate(ctx context.Context, above bool, threshold float64, limit int) ([]*model.Channel, error)

	// ListNewest returns the most recently created channels
	ListNewest(ctx context.Context, limit int) ([]*model.Channel, error)

	// BaselineSnapshots returns, per external ID, the latest snapshot observed on
	// or before the UTC day of before
	BaselineSnapshots(ctx context.Context, externalIDs []string, before time.Time) (map[string]*model.Snapshot, error)

	// RankInputs loads every channel's subscriber count in insertion order, with
	// Rank set to the rank recorded on its baseline snapshot (0 when none)
	RankInputs(ctx context.Context, baseline time.Time) ([]*model.Channel, error)

	// UpdateRanks writes computed ranks to channels and to their snapshots
	// observed since the UTC day of since, in a single statement
	UpdateRanks(ctx context.Context, updates []model.RankUpdate, since time.Time) error

	// PruneSnapshots deletes snapshots older than before, keeping the newest of them per channel
	PruneSnapshots(ctx context.Context, before time.Time) (int64, error)
}
