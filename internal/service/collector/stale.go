package collector

import (
	"context"

	"github.com/Taichi-iskw/yt-rank/internal/logger"
)

// RefreshStale selects channels not refreshed within StaleAfter, never-refreshed
// first, capped at MaxPerRun, and collects them
func (c *collector) RefreshStale(ctx context.Context, pool *CredentialPool) (CollectionResult, error) {
	before := c.opts.Now().UTC().Add(-c.opts.StaleAfter)

	limit := c.opts.MaxPerRun
	if limit <= 0 {
		limit = c.opts.BatchSize
	}

	ids, err := c.deps.Channels.FindStale(ctx, before, limit)
	if err != nil {
		return CollectionResult{}, err
	}

	log := logger.With("collector")
	log.Info().
		Int("stale", len(ids)).
		Time("before", before).
		Msg("refreshing stale channels")

	return c.CollectBatch(ctx, ids, pool), nil
}

// PruneSnapshots deletes snapshots past the retention period. The newest
// snapshot older than the cutoff is kept per channel.
func (c *collector) PruneSnapshots(ctx context.Context) (int64, error) {
	retention := max(c.opts.SnapshotRetention, minSnapshotRetention)
	before := c.opts.Now().UTC().Add(-retention)

	deleted, err := c.deps.Channels.PruneSnapshots(ctx, before)
	if err != nil {
		return 0, err
	}

	log := logger.With("collector")
	log.Info().
		Int64("deleted", deleted).
		Time("before", before).
		Msg("snapshots pruned")

	return deleted, nil
}
