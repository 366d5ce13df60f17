package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Taichi-iskw/yt-rank/internal/model"
)

// mockChannelRepository is a mock implementation of repository.ChannelRepository
type mockChannelRepository struct {
	mock.Mock
}

func channelsArg(args mock.Arguments, i int) []*model.Channel {
	if v := args.Get(i); v != nil {
		return v.([]*model.Channel)
	}
	return nil
}

func (m *mockChannelRepository) Upsert(ctx context.Context, in *model.ChannelUpsert) (*model.Channel, bool, error) {
	args := m.Called(ctx, in)
	ch, _ := args.Get(0).(*model.Channel)
	return ch, args.Bool(1), args.Error(2)
}

func (m *mockChannelRepository) FindByID(ctx context.Context, id int64) (*model.Channel, error) {
	args := m.Called(ctx, id)
	ch, _ := args.Get(0).(*model.Channel)
	return ch, args.Error(1)
}

func (m *mockChannelRepository) FindByExternalID(ctx context.Context, externalID string) (*model.Channel, error) {
	args := m.Called(ctx, externalID)
	ch, _ := args.Get(0).(*model.Channel)
	return ch, args.Error(1)
}

func (m *mockChannelRepository) Query(ctx context.Context, q model.ChannelQuery) ([]*model.Channel, int, error) {
	args := m.Called(ctx, q)
	return channelsArg(args, 0), args.Int(1), args.Error(2)
}

func (m *mockChannelRepository) GroupBy(ctx context.Context, dimension string) ([]model.GroupCount, error) {
	args := m.Called(ctx, dimension)
	groups, _ := args.Get(0).([]model.GroupCount)
	return groups, args.Error(1)
}

func (m *mockChannelRepository) FindStale(ctx context.Context, before time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, before, limit)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockChannelRepository) Search(ctx context.Context, term string, limit int) ([]*model.Channel, error) {
	args := m.Called(ctx, term, limit)
	return channelsArg(args, 0), args.Error(1)
}

func (m *mockChannelRepository) ListByWeeklyRate(ctx context.Context, above bool, threshold float64, limit int) ([]*model.Channel, error) {
	args := m.Called(ctx, above, threshold, limit)
	return channelsArg(args, 0), args.Error(1)
}

func (m *mockChannelRepository) ListNewest(ctx context.Context, limit int) ([]*model.Channel, error) {
	args := m.Called(ctx, limit)
	return channelsArg(args, 0), args.Error(1)
}

func (m *mockChannelRepository) BaselineSnapshots(ctx context.Context, externalIDs []string, before time.Time) (map[string]*model.Snapshot, error) {
	args := m.Called(ctx, externalIDs, before)
	snaps, _ := args.Get(0).(map[string]*model.Snapshot)
	return snaps, args.Error(1)
}

func (m *mockChannelRepository) RankInputs(ctx context.Context, baseline time.Time) ([]*model.Channel, error) {
	args := m.Called(ctx, baseline)
	return channelsArg(args, 0), args.Error(1)
}

func (m *mockChannelRepository) UpdateRanks(ctx context.Context, updates []model.RankUpdate, since time.Time) error {
	args := m.Called(ctx, updates, since)
	return args.Error(0)
}

func (m *mockChannelRepository) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// mockResolver is a mock implementation of HandleResolver
type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) ResolveHandle(ctx context.Context, handle string) (string, error) {
	args := m.Called(ctx, handle)
	return args.String(0), args.Error(1)
}

// mockSource is a mock implementation of youtube.ChannelSource
type mockSource struct {
	mock.Mock
}

func (m *mockSource) FetchBatch(ctx context.Context, ids []string, cred model.Credential) ([]*model.ChannelStats, error) {
	args := m.Called(ctx, ids, cred)
	stats, _ := args.Get(0).([]*model.ChannelStats)
	return stats, args.Error(1)
}

func (m *mockSource) ResolveHandle(ctx context.Context, handle string, cred model.Credential) (string, error) {
	args := m.Called(ctx, handle, cred)
	return args.String(0), args.Error(1)
}

func (m *mockSource) Cost(batchSize int) int {
	return 1
}

// memoryCache is a map-backed Cache
type memoryCache struct {
	version    int64
	versionErr error
	entries    map[string]any
	gets       int
	sets       int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]any)}
}

func versioned(version int64, key string) string {
	return fmt.Sprintf("v%d:%s", version, key)
}

func (c *memoryCache) invalidate() {
	c.version++
}

func (c *memoryCache) Version(ctx context.Context) (int64, error) {
	return c.version, c.versionErr
}

func (c *memoryCache) Get(ctx context.Context, version int64, key string, dest any) (bool, error) {
	c.gets++
	v, ok := c.entries[versioned(version, key)]
	if !ok {
		return false, nil
	}
	switch d := dest.(type) {
	case *RankPage:
		*d = *(v.(*RankPage))
	case *Trends:
		*d = *(v.(*Trends))
	}
	return true, nil
}

func (c *memoryCache) Set(ctx context.Context, version int64, key string, value any) error {
	c.sets++
	c.entries[versioned(version, key)] = value
	return nil
}
