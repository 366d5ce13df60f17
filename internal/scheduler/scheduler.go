// Package scheduler triggers the periodic channel refresh on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Taichi-iskw/yt-rank/internal/logger"
	"github.com/Taichi-iskw/yt-rank/internal/model"
	"github.com/Taichi-iskw/yt-rank/internal/service/collector"
)

// Job is one scheduled unit of work
type Job func(ctx context.Context) error

// Scheduler runs a Job on a six-field (seconds first) cron schedule
type Scheduler struct {
	name string
	spec string
	job  Job
	cron *cron.Cron
}

// New creates a scheduler. Overlapping runs are skipped, not queued.
func New(name, spec string, job Job) *Scheduler {
	log := logger.With("scheduler")
	cronLog := cron.PrintfLogger(&log)

	return &Scheduler{
		name: name,
		spec: spec,
		job:  job,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
	}
}

// Start registers the job and blocks until ctx is cancelled. A job in flight
// when ctx ends is allowed to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	log := logger.With("scheduler")

	_, err := s.cron.AddFunc(s.spec, func() {
		if err := s.RunOnce(ctx); err != nil {
			log.Error().Err(err).Str("job", s.name).Msg("scheduled run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	log.Info().Str("job", s.name).Str("schedule", s.spec).Msg("scheduler started")
	s.cron.Start()

	<-ctx.Done()
	log.Info().Str("job", s.name).Msg("scheduler stopping")
	<-s.cron.Stop().Done()
	return ctx.Err()
}

// RunOnce executes the job immediately
func (s *Scheduler) RunOnce(ctx context.Context) error {
	log := logger.With("scheduler")
	start := time.Now()

	log.Info().Str("job", s.name).Msg("run started")
	if err := s.job(ctx); err != nil {
		return fmt.Errorf("%s run failed: %w", s.name, err)
	}
	log.Info().Str("job", s.name).Dur("duration", time.Since(start)).Msg("run finished")
	return nil
}

// RefreshJob is the weekly-update job: a fresh credential pool per run, a stale
// refresh, then snapshot pruning
func RefreshJob(c collector.Collector, creds []model.Credential, quotaPerKey int) Job {
	return func(ctx context.Context) error {
		pool := collector.NewCredentialPool(creds, quotaPerKey)

		result, err := c.RefreshStale(ctx, pool)
		if err != nil {
			return fmt.Errorf("stale refresh: %w", err)
		}
		if result.Partial() {
			log := logger.With("scheduler")
			log.Warn().
				Str("run_id", result.RunID).
				Int("skipped_quota", result.SkippedDueToQuota).
				Msg("refresh stopped early, remaining channels wait for the next run")
		}

		if _, err := c.PruneSnapshots(ctx); err != nil {
			return fmt.Errorf("snapshot pruning: %w", err)
		}
		return nil
	}
}
