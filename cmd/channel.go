package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-rank/internal/model"
	"github.com/Taichi-iskw/yt-rank/internal/repository"
	"github.com/Taichi-iskw/yt-rank/internal/service/ranking"
)

// channelCmd represents the channel command
var channelCmd = &cobra.Command{
	Use:   "channel",
	Short: "Ranked channel queries",
	Long:  `Query the ranked channel directory: listings, trends, search and group counts.`,
}

// channelRankCmd lists ranked channels
var channelRankCmd = &cobra.Command{
	Use:   "rank",
	Short: "List channels ranked by a metric",
	Long: `List channels sorted by subscribers, views, growth or engagement over a period.

Sort keys: subscribers, views, subscribers-weekly, views-weekly, growth, engagement.
Periods: realtime, weekly, monthly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := rankQueryFromFlags(cmd)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		services, cleanup, err := NewServiceFactory().CreateServices(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		page, err := services.Ranking.ListRanked(ctx, q)
		if err != nil {
			return fmt.Errorf("failed to list channels: %w", err)
		}

		if outputFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), page)
		}

		if len(page.Channels) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No channels found.")
			return nil
		}
		renderChannels(cmd.OutOrStdout(), page.Channels)
		fmt.Fprintf(cmd.OutOrStdout(), "Page %d (%d per page), %d channel(s) in total\n", page.Page, page.PageSize, page.Total)
		return nil
	},
}

// channelTrendsCmd shows rising, falling and new channels
var channelTrendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Show rising, falling and newly tracked channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		services, cleanup, err := NewServiceFactory().CreateServices(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		trends, err := services.Ranking.TrendBuckets(ctx)
		if err != nil {
			return fmt.Errorf("failed to compute trends: %w", err)
		}

		if outputFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), trends)
		}

		out := cmd.OutOrStdout()
		for _, bucket := range []struct {
			title    string
			channels []*model.Channel
		}{
			{"Rising", trends.Rising},
			{"Falling", trends.Falling},
			{"New", trends.New},
		} {
			fmt.Fprintf(out, "%s (%d)\n", bucket.title, len(bucket.channels))
			if len(bucket.channels) > 0 {
				renderChannels(out, bucket.channels)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

// channelSearchCmd searches by name, handle, ID or URL
var channelSearchCmd = &cobra.Command{
	Use:   "search [QUERY]",
	Short: "Search channels",
	Long:  `Search tracked channels by name, @handle, channel ID or channel URL.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		services, cleanup, err := NewServiceFactory().CreateServices(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		limit, _ := cmd.Flags().GetInt("limit")
		result, err := services.Ranking.Search(ctx, args[0], limit)
		if err != nil {
			return fmt.Errorf("failed to search channels: %w", err)
		}

		if outputFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), result)
		}

		if len(result.Channels) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No channels found.")
			return nil
		}
		renderChannels(cmd.OutOrStdout(), result.Channels)
		return nil
	},
}

// channelGroupsCmd counts channels per category or country
var channelGroupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Count channels per category or country",
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		services, cleanup, err := NewServiceFactory().CreateServices(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		groups, err := services.Ranking.Groups(ctx, by)
		if err != nil {
			return fmt.Errorf("failed to count channels: %w", err)
		}

		if outputFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), map[string]any{"by": by, "groups": groups})
		}
		renderGroups(cmd.OutOrStdout(), by, groups)
		return nil
	},
}

// channelGetCmd shows one channel
var channelGetCmd = &cobra.Command{
	Use:   "get [ID]",
	Short: "Show a channel by internal ID or channel ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		services, cleanup, err := NewServiceFactory().CreateServices(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		ch, err := findChannel(ctx, services, args[0])
		if err != nil {
			return err
		}
		if ch == nil {
			return fmt.Errorf("channel not found: %s", args[0])
		}

		if outputFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), ch)
		}
		renderChannel(cmd.OutOrStdout(), ch)
		return nil
	},
}

// findChannel resolves a numeric internal ID or an external channel ID
func findChannel(ctx context.Context, services *Services, ref string) (*model.Channel, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		ch, err := services.Ranking.Channel(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get channel: %w", err)
		}
		return ch, nil
	}

	result, err := services.Ranking.Search(ctx, ref, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	for _, ch := range result.Channels {
		if ch.ExternalID == ref || "@"+ch.Handle == ref || ch.Handle == ref {
			return ch, nil
		}
	}
	return nil, nil
}

func rankQueryFromFlags(cmd *cobra.Command) ranking.RankQuery {
	flags := cmd.Flags()
	q := ranking.RankQuery{}

	q.SortBy, _ = flags.GetString("sort")
	q.Period, _ = flags.GetString("period")
	q.Page, _ = flags.GetInt("page")
	q.PageSize, _ = flags.GetInt("page-size")

	if flags.Changed("category") {
		v, _ := flags.GetString("category")
		q.Category = &v
	}
	if flags.Changed("country") {
		v, _ := flags.GetString("country")
		q.Country = &v
	}
	if flags.Changed("min-subscribers") {
		v, _ := flags.GetInt64("min-subscribers")
		q.MinSubscribers = &v
	}
	if flags.Changed("max-subscribers") {
		v, _ := flags.GetInt64("max-subscribers")
		q.MaxSubscribers = &v
	}
	if flags.Changed("min-growth-rate") {
		v, _ := flags.GetFloat64("min-growth-rate")
		q.MinGrowthRate = &v
	}

	return q
}

func init() {
	flags := channelRankCmd.Flags()
	flags.String("sort", "subscribers", "Sort key")
	flags.String("period", ranking.PeriodRealtime, "Period (realtime, weekly, monthly)")
	flags.Int("page", 1, "Page number")
	flags.Int("page-size", 20, "Channels per page")
	flags.String("category", "", "Only channels in this category")
	flags.String("country", "", "Only channels from this country code")
	flags.Int64("min-subscribers", 0, "Minimum subscriber count")
	flags.Int64("max-subscribers", 0, "Maximum subscriber count")
	flags.Float64("min-growth-rate", 0, "Minimum growth rate in percent for the period")

	channelSearchCmd.Flags().Int("limit", ranking.DefaultSearchLimit, "Maximum number of results")
	channelGroupsCmd.Flags().String("by", repository.GroupByCategory, "Grouping (category, country)")

	channelCmd.AddCommand(channelRankCmd)
	channelCmd.AddCommand(channelTrendsCmd)
	channelCmd.AddCommand(channelSearchCmd)
	channelCmd.AddCommand(channelGroupsCmd)
	channelCmd.AddCommand(channelGetCmd)
	rootCmd.AddCommand(channelCmd)
}
