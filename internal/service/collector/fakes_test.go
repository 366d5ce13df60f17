package collector

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Taichi-iskw/yt-rank/internal/model"
)

// mockSource is a mock implementation of youtube.ChannelSource
type mockSource struct {
	mock.Mock
}

func (m *mockSource) FetchBatch(ctx context.Context, ids []string, cred model.Credential) ([]*model.ChannelStats, error) {
	args := m.Called(ctx, ids, cred)
	var stats []*model.ChannelStats
	if v := args.Get(0); v != nil {
		stats = v.([]*model.ChannelStats)
	}
	return stats, args.Error(1)
}

func (m *mockSource) ResolveHandle(ctx context.Context, handle string, cred model.Credential) (string, error) {
	args := m.Called(ctx, handle, cred)
	return args.String(0), args.Error(1)
}

func (m *mockSource) Cost(batchSize int) int {
	args := m.Called(batchSize)
	return args.Int(0)
}

// mockInvalidator counts cache invalidations
type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// memoryStore is an in-memory stand-in for the channel, category and video repositories
type memoryStore struct {
	mu sync.Mutex

	nextID     int64
	channels   map[string]*model.Channel
	order      []string
	snapshots  map[string][]model.Snapshot
	categories map[string]int64
	videos     map[string]*model.Video

	upsertErr   map[string]error
	baselineErr error

	staleIDs    []string
	staleBefore time.Time
	staleLimit  int
	pruneBefore time.Time
	rankUpdates int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		channels:   make(map[string]*model.Channel),
		snapshots:  make(map[string][]model.Snapshot),
		categories: make(map[string]int64),
		videos:     make(map[string]*model.Video),
		upsertErr:  make(map[string]error),
	}
}

// seedSnapshot records a historical observation for a channel that may not exist yet
func (s *memoryStore) seedSnapshot(externalID string, subs, views int64, at time.Time) {
	s.seedRankedSnapshot(externalID, subs, views, 0, at)
}

func (s *memoryStore) seedRankedSnapshot(externalID string, subs, views int64, rank int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[externalID] = append(s.snapshots[externalID], model.Snapshot{
		SubscriberCount: subs, ViewCount: views, ObservedAt: at, Rank: rank,
	})
}

// snapshotOn returns the snapshot of externalID observed on day's UTC date
func (s *memoryStore) snapshotOn(externalID string, day time.Time) *model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range s.snapshots[externalID] {
		if utcDay(snap.ObservedAt).Equal(utcDay(day)) {
			c := snap
			return &c
		}
	}
	return nil
}

func utcDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

func (s *memoryStore) channel(externalID string) *model.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[externalID]
	if !ok {
		return nil
	}
	c := *ch
	return &c
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}

// state returns a copy of every stored channel keyed by external ID
func (s *memoryStore) state() map[string]model.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.Channel, len(s.channels))
	for id, ch := range s.channels {
		out[id] = *ch
	}
	return out
}

func (s *memoryStore) Upsert(ctx context.Context, in *model.ChannelUpsert) (*model.Channel, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := in.Stats
	if err := s.upsertErr[st.ExternalID]; err != nil {
		return nil, false, err
	}

	ch, exists := s.channels[st.ExternalID]
	if !exists {
		s.nextID++
		ch = &model.Channel{ID: s.nextID, ExternalID: st.ExternalID, CreatedAt: in.ObservedAt}
		s.channels[st.ExternalID] = ch
		s.order = append(s.order, st.ExternalID)
	}

	ch.Name = st.Name
	ch.Handle = st.Handle
	ch.Country = st.Country
	ch.Category = st.Category
	if in.CategoryID != nil {
		id := *in.CategoryID
		ch.CategoryID = &id
	}
	if !st.SubscribersHidden || !exists {
		ch.SubscriberCount = st.SubscriberCount
	}
	ch.ViewCount = st.ViewCount
	ch.VideoCount = st.VideoCount
	ch.WeeklySubscriberDelta = in.Weekly.SubscriberDelta
	ch.WeeklySubscriberRate = in.Weekly.SubscriberRate
	ch.WeeklyViewDelta = in.Weekly.ViewDelta
	ch.WeeklyViewRate = in.Weekly.ViewRate
	ch.MonthlySubscriberDelta = in.Monthly.SubscriberDelta
	ch.MonthlySubscriberRate = in.Monthly.SubscriberRate
	if in.EngagementRate != nil {
		ch.EngagementRate = *in.EngagementRate
	}
	observed := in.ObservedAt
	ch.LastUpdated = &observed

	// One snapshot per channel per day, newest wins; the day's rank is kept
	day := utcDay(in.ObservedAt)
	snaps := s.snapshots[st.ExternalID]
	replaced := false
	for i, snap := range snaps {
		if utcDay(snap.ObservedAt).Equal(day) {
			if !snap.ObservedAt.After(in.ObservedAt) {
				snaps[i] = model.Snapshot{ChannelID: ch.ID, SubscriberCount: ch.SubscriberCount, ViewCount: st.ViewCount, ObservedAt: in.ObservedAt, Rank: snap.Rank}
			}
			replaced = true
		}
	}
	if !replaced {
		snaps = append(snaps, model.Snapshot{ChannelID: ch.ID, SubscriberCount: ch.SubscriberCount, ViewCount: st.ViewCount, ObservedAt: in.ObservedAt})
	}
	s.snapshots[st.ExternalID] = snaps

	c := *ch
	return &c, !exists, nil
}

func (s *memoryStore) FindByID(ctx context.Context, id int64) (*model.Channel, error) {
	return nil, nil
}

func (s *memoryStore) FindByExternalID(ctx context.Context, externalID string) (*model.Channel, error) {
	return s.channel(externalID), nil
}

func (s *memoryStore) Query(ctx context.Context, q model.ChannelQuery) ([]*model.Channel, int, error) {
	return nil, 0, nil
}

func (s *memoryStore) GroupBy(ctx context.Context, dimension string) ([]model.GroupCount, error) {
	return nil, nil
}

func (s *memoryStore) FindStale(ctx context.Context, before time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleBefore = before
	s.staleLimit = limit
	return s.staleIDs, nil
}

func (s *memoryStore) Search(ctx context.Context, term string, limit int) ([]*model.Channel, error) {
	return nil, nil
}

func (s *memoryStore) ListByWeeklyRate(ctx context.Context, above bool, threshold float64, limit int) ([]*model.Channel, error) {
	return nil, nil
}

func (s *memoryStore) ListNewest(ctx context.Context, limit int) ([]*model.Channel, error) {
	return nil, nil
}

func (s *memoryStore) BaselineSnapshots(ctx context.Context, externalIDs []string, before time.Time) (map[string]*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baselineErr != nil {
		return nil, s.baselineErr
	}

	out := make(map[string]*model.Snapshot)
	for _, id := range externalIDs {
		if best := s.baseline(id, before); best != nil {
			out[id] = best
		}
	}
	return out, nil
}

// baseline is the latest snapshot of externalID observed on or before before's UTC day
func (s *memoryStore) baseline(externalID string, before time.Time) *model.Snapshot {
	var best *model.Snapshot
	for i := range s.snapshots[externalID] {
		snap := s.snapshots[externalID][i]
		if utcDay(snap.ObservedAt).After(utcDay(before)) {
			continue
		}
		if best == nil || snap.ObservedAt.After(best.ObservedAt) {
			best = &snap
		}
	}
	return best
}

func (s *memoryStore) RankInputs(ctx context.Context, baseline time.Time) ([]*model.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Channel, 0, len(s.order))
	for _, id := range s.order {
		c := *s.channels[id]
		c.Rank = 0
		if snap := s.baseline(id, baseline); snap != nil {
			c.Rank = snap.Rank
		}
		out = append(out, &c)
	}
	return out, nil
}

func (s *memoryStore) UpdateRanks(ctx context.Context, updates []model.RankUpdate, since time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rankUpdates++
	byID := make(map[int64]string, len(s.channels))
	for externalID, ch := range s.channels {
		byID[ch.ID] = externalID
	}
	for _, u := range updates {
		externalID, ok := byID[u.ChannelID]
		if !ok {
			continue
		}
		ch := s.channels[externalID]
		ch.Rank = u.Rank
		ch.RankChange = u.RankChange
		for i, snap := range s.snapshots[externalID] {
			if !utcDay(snap.ObservedAt).Before(utcDay(since)) {
				s.snapshots[externalID][i].Rank = u.Rank
			}
		}
	}
	return nil
}

func (s *memoryStore) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneBefore = before
	return 4, nil
}

func (s *memoryStore) EnsureCategories(ctx context.Context, names []string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(names))
	for _, raw := range names {
		name := model.CategoryName(raw)
		id, ok := s.categories[name]
		if !ok {
			id = int64(len(s.categories) + 1)
			s.categories[name] = id
		}
		out[name] = id
	}
	return out, nil
}

func (s *memoryStore) UpsertBatch(ctx context.Context, videos []*model.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range videos {
		c := *v
		s.videos[v.ID] = &c
	}
	return nil
}

func (s *memoryStore) GetByChannelID(ctx context.Context, channelID int64, limit, offset int) ([]*model.Video, error) {
	return nil, nil
}
