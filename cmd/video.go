package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/Taichi-iskw/yt-rank/internal/errors"
)

// videoCmd represents the video command
var videoCmd = &cobra.Command{
	Use:   "video",
	Short: "Sampled video operations",
	Long:  `Inspect the recent uploads sampled for engagement rates during collection.`,
}

// videoListCmd lists the sampled videos of a channel
var videoListCmd = &cobra.Command{
	Use:   "list [CHANNEL_ID]",
	Short: "List sampled videos for a channel",
	Long:  `List the sampled videos of a tracked channel, newest first.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		services, cleanup, err := NewServiceFactory().CreateServices(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		channel, err := services.Channels.FindByExternalID(ctx, args[0])
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return fmt.Errorf("channel not found: %s", args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to get channel: %w", err)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		videos, err := services.Videos.GetByChannelID(ctx, channel.ID, limit, offset)
		if err != nil {
			return fmt.Errorf("failed to list videos: %w", err)
		}

		if outputFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), videos)
		}

		if len(videos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No videos found for this channel.")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d video(s)\n", channel.Name, len(videos))
		renderVideos(cmd.OutOrStdout(), videos)
		return nil
	},
}

func init() {
	// Add pagination flags to list command
	videoListCmd.Flags().Int("limit", 10, "Maximum number of videos to retrieve")
	videoListCmd.Flags().Int("offset", 0, "Number of videos to skip")

	videoCmd.AddCommand(videoListCmd)
	rootCmd.AddCommand(videoCmd)
}
