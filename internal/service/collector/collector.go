// Package collector refreshes channel records from the YouTube Data API.
package collector

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "github.com/Taichi-iskw/yt-rank/internal/errors"
	"github.com/Taichi-iskw/yt-rank/internal/logger"
	"github.com/Taichi-iskw/yt-rank/internal/model"
	"github.com/Taichi-iskw/yt-rank/internal/repository"
	"github.com/Taichi-iskw/yt-rank/internal/service/metrics"
	"github.com/Taichi-iskw/yt-rank/internal/service/youtube"
	"github.com/Taichi-iskw/yt-rank/internal/telemetry"
)

const (
	DefaultBatchSize = youtube.MaxBatchSize

	// Snapshots younger than this are never pruned; the monthly delta needs a
	// baseline at least 30 days old
	minSnapshotRetention = metrics.MonthWindow + 24*time.Hour
)

// errNoCredentials ends a run: every credential is exhausted
var errNoCredentials = errors.New("all credentials exhausted")

// CollectionResult summarises one run
type CollectionResult struct {
	RunID                string    `json:"run_id"`
	Attempted            int       `json:"attempted"`
	Updated              int       `json:"updated"` // created + updated
	Created              int       `json:"created"`
	Missing              int       `json:"missing"` // IDs the source did not return
	SkippedDueToError    int       `json:"skipped_due_to_error"`
	SkippedDueToQuota    int       `json:"skipped_due_to_quota"`
	ExhaustedCredentials []string  `json:"exhausted_credentials"`
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
}

// Partial reports whether the run stopped early for lack of quota
func (r CollectionResult) Partial() bool {
	return r.SkippedDueToQuota > 0
}

// Invalidator drops cached ranking responses after a run
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Collector keeps channel records fresh within the API quota
type Collector interface {
	// CollectBatch fetches and upserts the given channels. Source failures never
	// surface as errors; they are counted in the result.
	CollectBatch(ctx context.Context, ids []string, pool *CredentialPool) CollectionResult

	// RefreshStale collects the channels least recently refreshed
	RefreshStale(ctx context.Context, pool *CredentialPool) (CollectionResult, error)

	// PruneSnapshots applies the snapshot retention policy
	PruneSnapshots(ctx context.Context) (int64, error)
}

// Dependencies wires the collector; Cache and Telemetry are optional
type Dependencies struct {
	Source     youtube.ChannelSource
	Channels   repository.ChannelRepository
	Categories repository.CategoryRepository
	Videos     repository.VideoRepository
	Cache      Invalidator
	Telemetry  *telemetry.Telemetry
}

// Options tunes a collector
type Options struct {
	BatchSize         int
	StaleAfter        time.Duration
	MaxPerRun         int
	SnapshotRetention time.Duration

	// Now overrides the clock (tests)
	Now func() time.Time
}

// collector implements Collector
type collector struct {
	deps Dependencies
	opts Options
}

// NewCollector creates a new Collector
func NewCollector(deps Dependencies, opts Options) Collector {
	if opts.BatchSize <= 0 || opts.BatchSize > youtube.MaxBatchSize {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &collector{deps: deps, opts: opts}
}

// CollectBatch processes ids in batches, sequentially and in input order
func (c *collector) CollectBatch(ctx context.Context, ids []string, pool *CredentialPool) CollectionResult {
	result := CollectionResult{
		RunID:     uuid.NewString(),
		StartedAt: c.opts.Now().UTC(),
	}
	log := logger.With("collector").With().Str("run_id", result.RunID).Logger()

	ids = dedupe(ids)
	result.Attempted = len(ids)

	batches := chunk(ids, c.opts.BatchSize)
	for i, batch := range batches {
		// Cancellation is honoured between batches only; an in-flight batch completes
		if err := ctx.Err(); err != nil {
			for _, rest := range batches[i:] {
				result.SkippedDueToError += len(rest)
			}
			log.Warn().Err(err).Int("batch", i).Msg("run cancelled, remaining batches skipped")
			break
		}

		batchCtx := context.WithoutCancel(ctx)
		batchLog := log.With().Int("batch", i).Int("size", len(batch)).Logger()

		stats, err := c.fetch(batchCtx, batch, pool, batchLog)
		if errors.Is(err, errNoCredentials) {
			for _, rest := range batches[i:] {
				result.SkippedDueToQuota += len(rest)
			}
			batchLog.Warn().Msg("credentials exhausted, run ends with a partial result")
			break
		}
		if err != nil {
			result.SkippedDueToError += len(batch)
			batchLog.Error().Err(err).Str("code", apperrors.CodeOf(err)).Msg("batch skipped")
			continue
		}

		c.store(batchCtx, batch, stats, &result, batchLog)
	}

	result.ExhaustedCredentials = pool.Exhausted()
	c.finish(context.WithoutCancel(ctx), &result, log)
	return result
}

// fetch issues one source request for batch, rotating credentials on quota or
// credential errors and retrying a transport failure once
func (c *collector) fetch(ctx context.Context, batch []string, pool *CredentialPool, log zerolog.Logger) ([]*model.ChannelStats, error) {
	cost := c.deps.Source.Cost(len(batch))
	retried := false

	for {
		cred, ok := pool.Acquire(cost)
		if !ok {
			return nil, errNoCredentials
		}

		stats, err := c.deps.Source.FetchBatch(ctx, batch, cred)
		if err == nil {
			pool.Consume(cost)
			return stats, nil
		}

		credLog := log.With().Str("credential", cred.Name).Logger()

		switch apperrors.CodeOf(err) {
		case apperrors.CodeQuotaExceeded, apperrors.CodeInvalidCredential:
			credLog.Warn().Err(err).Msg("credential exhausted, rotating")
			pool.MarkExhausted()

		case apperrors.CodeTransport:
			pool.Consume(cost)
			if retried {
				return nil, err
			}
			retried = true
			credLog.Warn().Err(err).Msg("transport failure, retrying batch once")

		default:
			pool.Consume(cost)
			return nil, err
		}
	}
}

// store upserts every returned channel. A failed upsert only skips that channel.
func (c *collector) store(ctx context.Context, batch []string, stats []*model.ChannelStats, result *CollectionResult, log zerolog.Logger) {
	returned := make(map[string]bool, len(stats))
	externalIDs := make([]string, 0, len(stats))
	names := make([]string, 0, len(stats))
	for _, st := range stats {
		returned[st.ExternalID] = true
		externalIDs = append(externalIDs, st.ExternalID)
		names = append(names, st.Category)
	}
	for _, id := range batch {
		if !returned[id] {
			result.Missing++
			log.Debug().Str("external_id", id).Msg("channel not returned by source")
		}
	}
	if len(stats) == 0 {
		return
	}

	observedAt := c.opts.Now().UTC()

	// One lookup per batch for categories and for each baseline window
	categoryIDs, err := c.deps.Categories.EnsureCategories(ctx, names)
	if err != nil {
		log.Error().Err(err).Msg("category lookup failed, keeping stored categories")
		categoryIDs = nil
	}

	weekly, err := c.deps.Channels.BaselineSnapshots(ctx, externalIDs, observedAt.Add(-metrics.WeekWindow))
	if err != nil {
		result.SkippedDueToError += len(stats)
		log.Error().Err(err).Msg("weekly baseline lookup failed, batch skipped")
		return
	}
	monthly, err := c.deps.Channels.BaselineSnapshots(ctx, externalIDs, observedAt.Add(-metrics.MonthWindow))
	if err != nil {
		result.SkippedDueToError += len(stats)
		log.Error().Err(err).Msg("monthly baseline lookup failed, batch skipped")
		return
	}

	for _, st := range stats {
		in := buildUpsert(st, weekly[st.ExternalID], monthly[st.ExternalID], observedAt)
		if id, ok := categoryIDs[model.CategoryName(st.Category)]; ok {
			in.CategoryID = &id
		}

		ch, created, err := c.deps.Channels.Upsert(ctx, in)
		if err != nil {
			result.SkippedDueToError++
			log.Error().Err(err).Str("external_id", st.ExternalID).Str("code", apperrors.CodeOf(err)).Msg("upsert failed")
			continue
		}

		result.Updated++
		if created {
			result.Created++
		}

		if len(st.RecentVideos) > 0 && c.deps.Videos != nil {
			for _, v := range st.RecentVideos {
				v.ChannelID = ch.ID
			}
			if err := c.deps.Videos.UpsertBatch(ctx, st.RecentVideos); err != nil {
				log.Warn().Err(err).Str("external_id", st.ExternalID).Msg("video sample not stored")
			}
		}
	}
}

func buildUpsert(st *model.ChannelStats, weekly, monthly *model.Snapshot, observedAt time.Time) *model.ChannelUpsert {
	current := metrics.Counts{Subscribers: st.SubscriberCount, Views: st.ViewCount}

	in := &model.ChannelUpsert{
		Stats:      st,
		Weekly:     metrics.ComputeWeeklyChange(current, weekly, observedAt),
		Monthly:    metrics.ComputeChange(current, monthly, observedAt, metrics.MonthWindow),
		ObservedAt: observedAt,
	}

	if st.SubscribersHidden {
		// The stored count is kept, so there is nothing to compare
		in.Weekly.SubscriberDelta, in.Weekly.SubscriberRate = 0, 0
		in.Monthly.SubscriberDelta, in.Monthly.SubscriberRate = 0, 0
	}

	if st.HasEngagementSample() {
		likes, comments, views := st.EngagementTotals()
		rate := metrics.ComputeEngagementRate(likes, comments, views)
		in.EngagementRate = &rate
	}

	return in
}

// finish runs the post-collection follow-ups; their failures are only logged
func (c *collector) finish(ctx context.Context, result *CollectionResult, log zerolog.Logger) {
	if result.Updated > 0 {
		if err := c.recomputeRanks(ctx, result.StartedAt); err != nil {
			log.Error().Err(err).Msg("rank recomputation failed")
		}
		if c.deps.Cache != nil {
			if err := c.deps.Cache.Invalidate(ctx); err != nil {
				log.Warn().Err(err).Msg("cache invalidation failed")
			}
		}
	}

	result.FinishedAt = c.opts.Now().UTC()

	outcome := telemetry.OutcomeCompleted
	switch {
	case result.Attempted == 0:
		outcome = telemetry.OutcomeNoop
	case result.Partial():
		outcome = telemetry.OutcomePartial
	}

	c.deps.Telemetry.ObserveCollection(telemetry.CollectionSummary{
		Outcome:              outcome,
		Updated:              result.Updated,
		Created:              result.Created,
		Missing:              result.Missing,
		SkippedDueToError:    result.SkippedDueToError,
		SkippedDueToQuota:    result.SkippedDueToQuota,
		ExhaustedCredentials: len(result.ExhaustedCredentials),
		Duration:             result.FinishedAt.Sub(result.StartedAt),
	})

	log.Info().
		Str("outcome", outcome).
		Int("attempted", result.Attempted).
		Int("updated", result.Updated).
		Int("created", result.Created).
		Int("missing", result.Missing).
		Int("skipped_error", result.SkippedDueToError).
		Int("skipped_quota", result.SkippedDueToQuota).
		Strs("exhausted_credentials", result.ExhaustedCredentials).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("collection finished")
}

// recomputeRanks ranks every channel by subscribers and writes the ranks back.
// Rank change is measured against the rank on each channel's weekly baseline snapshot.
func (c *collector) recomputeRanks(ctx context.Context, startedAt time.Time) error {
	inputs, err := c.deps.Channels.RankInputs(ctx, startedAt.Add(-metrics.WeekWindow))
	if err != nil {
		return err
	}

	ranked := metrics.ComputeRank(inputs, metrics.BySubscribers)
	updates := make([]model.RankUpdate, len(ranked))
	for i, ch := range ranked {
		updates[i] = model.RankUpdate{ChannelID: ch.ID, Rank: ch.Rank, RankChange: ch.RankChange}
	}

	return c.deps.Channels.UpdateRanks(ctx, updates, startedAt)
}

// dedupe trims IDs and drops blanks and repeats, keeping first occurrence order
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func chunk(ids []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}
