package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var outputFormat string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "yt-rank",
	Short: "YouTube channel ranking and trend aggregation",
	Long: `yt-rank collects YouTube channel statistics under API quota limits and serves
ranked, filterable channel listings with weekly and monthly growth metrics.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateOutputFormat(outputFormat)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatTable, "Output format (table, json)")
}
