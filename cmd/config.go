package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-rank/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration settings",
	Long:  `Manage configuration settings for yt-rank.`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init [DATABASE_URL]",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with database connection settings and collector defaults.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var databaseURL string
		if len(args) > 0 {
			databaseURL = args[0]
		}

		if err := config.InitConfig(databaseURL); err != nil {
			return err
		}

		configPath, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created configuration file: %s\n", configPath)
		fmt.Fprintln(cmd.OutOrStdout(), "Please edit database_url and youtube.api_keys in this file before collecting.")

		return nil
	},
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration file path and effective settings. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		cfg, err := config.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		out := cmd.OutOrStdout()
		if outputFormat == formatJSON {
			masked := *cfg
			masked.DatabaseURL = maskURL(cfg.DatabaseURL)
			masked.RedisURL = maskURL(cfg.RedisURL)
			masked.YouTube.APIKeys = maskKeys(cfg.YouTube.APIKeys)
			return writeJSON(out, masked)
		}

		fmt.Fprintf(out, "Configuration file: %s\n\n", configPath)

		t := newTable(out)
		t.AppendRows([]table.Row{
			{"database_url", maskURL(cfg.DatabaseURL)},
			{"redis_url", maskURL(cfg.RedisURL)},
			{"log_level", cfg.LogLevel},
			{"server.port", cfg.Server.Port},
			{"server.cors_origins", cfg.Server.CORSOrigins},
			{"youtube.api_keys", strings.Join(maskKeys(cfg.YouTube.APIKeys), ", ")},
			{"youtube.daily_quota", cfg.YouTube.DailyQuota},
			{"youtube.timeout", cfg.YouTube.Timeout},
			{"youtube.engagement_sample_size", cfg.YouTube.EngagementSampleSize},
			{"collector.schedule", cfg.Collector.Schedule},
			{"collector.stale_after", cfg.Collector.StaleAfter},
			{"collector.max_per_run", cfg.Collector.MaxPerRun},
			{"collector.batch_size", cfg.Collector.BatchSize},
			{"collector.snapshot_retention", cfg.Collector.SnapshotRetention},
			{"ranking.default_page_size", cfg.Ranking.DefaultPageSize},
			{"ranking.max_page_size", cfg.Ranking.MaxPageSize},
			{"ranking.trend_threshold", cfg.Ranking.TrendThreshold},
			{"ranking.trend_limit", cfg.Ranking.TrendLimit},
			{"ranking.cache_ttl", cfg.Ranking.CacheTTL},
		})
		t.Render()

		return nil
	},
}

// maskURL hides the password of a connection URL
func maskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// maskKeys keeps the last four characters of each API key
func maskKeys(keys []string) []string {
	masked := make([]string, len(keys))
	for i, k := range keys {
		if len(k) <= 4 {
			masked[i] = "****"
			continue
		}
		masked[i] = "****" + k[len(k)-4:]
	}
	return masked
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
