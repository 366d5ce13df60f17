package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-rank/internal/scheduler"
	"github.com/Taichi-iskw/yt-rank/internal/service/collector"
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect channel statistics from YouTube",
	Long: `Fetch channel statistics from the YouTube Data API and upsert them, rotating
through the configured API keys as their daily quota runs out.`,
}

// collectChannelsCmd collects the given channels
var collectChannelsCmd = &cobra.Command{
	Use:   "channels [CHANNEL_ID...]",
	Short: "Collect specific channels",
	Long:  `Collect the given channel IDs (UC...). IDs may also be separated by commas.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		services, cleanup, err := NewServiceFactory().CreateServices(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		pool, err := services.NewCredentialPool()
		if err != nil {
			return err
		}

		result := services.Collector.CollectBatch(ctx, splitIDs(args), pool)
		return printCollectionResult(cmd, result)
	},
}

// collectStaleCmd runs the weekly-update mode once
var collectStaleCmd = &cobra.Command{
	Use:   "stale",
	Short: "Refresh the least recently updated channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		services, cleanup, err := NewServiceFactory().CreateServices(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		pool, err := services.NewCredentialPool()
		if err != nil {
			return err
		}

		result, err := services.Collector.RefreshStale(ctx, pool)
		if err != nil {
			return fmt.Errorf("failed to refresh stale channels: %w", err)
		}
		return printCollectionResult(cmd, result)
	},
}

// collectPruneCmd applies the snapshot retention policy
var collectPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete snapshots older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		services, cleanup, err := NewServiceFactory().CreateServices(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		deleted, err := services.Collector.PruneSnapshots(ctx)
		if err != nil {
			return fmt.Errorf("failed to prune snapshots: %w", err)
		}

		if outputFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), map[string]int64{"deleted": deleted})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d snapshot(s).\n", deleted)
		return nil
	},
}

// collectScheduleCmd runs the refresh job on the configured cron schedule
var collectScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the refresh job on a schedule",
	Long: `Run the stale refresh and snapshot pruning on collector.schedule (cron with
seconds) until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		services, cleanup, err := NewServiceFactory().CreateServices(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		sched, err := newRefreshScheduler(services, cmd)
		if err != nil {
			return err
		}

		runNow, _ := cmd.Flags().GetBool("run-now")
		if runNow {
			if err := sched.RunOnce(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}
		}

		if err := sched.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func newRefreshScheduler(services *Services, cmd *cobra.Command) (*scheduler.Scheduler, error) {
	spec, _ := cmd.Flags().GetString("spec")
	if spec == "" {
		spec = services.Config.Collector.Schedule
	}

	creds := services.Config.YouTube.Credentials()
	if len(creds) == 0 {
		return nil, fmt.Errorf("no YouTube API keys configured: set youtube.api_keys or YOUTUBE_API_KEYS")
	}

	job := scheduler.RefreshJob(services.Collector, creds, services.Config.YouTube.DailyQuota)
	return scheduler.New("refresh", spec, job), nil
}

func printCollectionResult(cmd *cobra.Command, result collector.CollectionResult) error {
	if outputFormat == formatJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}

	renderCollectionResult(cmd.OutOrStdout(), result)
	if result.Partial() {
		fmt.Fprintf(cmd.OutOrStdout(), "Quota exhausted: %d channel(s) were not attempted and can be retried later.\n", result.SkippedDueToQuota)
	}
	return nil
}

// splitIDs accepts both space and comma separated arguments
func splitIDs(args []string) []string {
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		for _, id := range strings.Split(arg, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func init() {
	collectScheduleCmd.Flags().String("spec", "", "Cron spec with seconds (defaults to collector.schedule)")
	collectScheduleCmd.Flags().Bool("run-now", false, "Run the job once before waiting for the schedule")

	collectCmd.AddCommand(collectChannelsCmd)
	collectCmd.AddCommand(collectStaleCmd)
	collectCmd.AddCommand(collectPruneCmd)
	collectCmd.AddCommand(collectScheduleCmd)
	rootCmd.AddCommand(collectCmd)
}
