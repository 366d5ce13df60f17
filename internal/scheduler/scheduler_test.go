package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Taichi-iskw/yt-rank/internal/model"
	"github.com/Taichi-iskw/yt-rank/internal/service/collector"
)

// fakeCollector records the pools it receives
type fakeCollector struct {
	pools      []*collector.CredentialPool
	available  []bool
	result     collector.CollectionResult
	refreshErr error
	pruneErr   error
	pruned     int
}

func (f *fakeCollector) CollectBatch(ctx context.Context, ids []string, pool *collector.CredentialPool) collector.CollectionResult {
	return f.result
}

func (f *fakeCollector) RefreshStale(ctx context.Context, pool *collector.CredentialPool) (collector.CollectionResult, error) {
	f.pools = append(f.pools, pool)
	_, ok := pool.Current()
	f.available = append(f.available, ok)
	pool.MarkExhausted()
	return f.result, f.refreshErr
}

func (f *fakeCollector) PruneSnapshots(ctx context.Context) (int64, error) {
	f.pruned++
	return 0, f.pruneErr
}

func TestRefreshJob(t *testing.T) {
	creds := []model.Credential{{Name: "key-1", APIKey: "a"}}

	t.Run("fresh pool per run", func(t *testing.T) {
		fc := &fakeCollector{result: collector.CollectionResult{SkippedDueToQuota: 3}}
		job := RefreshJob(fc, creds, 100)

		require.NoError(t, job(context.Background()))
		require.NoError(t, job(context.Background()))

		require.Len(t, fc.pools, 2)
		assert.NotSame(t, fc.pools[0], fc.pools[1])
		assert.Equal(t, []bool{true, true}, fc.available, "exhaustion is not carried into the next run")
		assert.Equal(t, 2, fc.pruned)
	})

	t.Run("refresh failure skips pruning", func(t *testing.T) {
		fc := &fakeCollector{refreshErr: errors.New("db down")}
		err := RefreshJob(fc, creds, 0)(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "stale refresh")
		assert.Equal(t, 0, fc.pruned)
	})

	t.Run("prune failure is reported", func(t *testing.T) {
		fc := &fakeCollector{pruneErr: errors.New("lock timeout")}
		err := RefreshJob(fc, creds, 0)(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "snapshot pruning")
	})
}

func TestScheduler_RunOnce(t *testing.T) {
	s := New("refresh", "0 0 3 * * *", func(ctx context.Context) error {
		return errors.New("quota gone")
	})

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh run failed")
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := New("refresh", "every tuesday", func(ctx context.Context) error { return nil })

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to add cron job")
}

func TestScheduler_Start(t *testing.T) {
	var runs atomic.Int32
	ran := make(chan struct{}, 1)

	s := New("refresh", "@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}
