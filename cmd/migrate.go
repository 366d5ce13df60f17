package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-rank/internal/config"
	"github.com/Taichi-iskw/yt-rank/internal/repository"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long:  `Apply or roll back the embedded schema migrations against database_url.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
			return err
		}

		return printMigrationVersion(cmd, cfg.DatabaseURL)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	Long:  `Roll back the most recent migrations. Use --all to drop the whole schema.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		all, _ := cmd.Flags().GetBool("all")
		if all {
			steps = 0
		} else if steps <= 0 {
			return fmt.Errorf("--steps must be positive")
		}

		cfg, err := config.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if err := repository.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
			return err
		}

		return printMigrationVersion(cmd, cfg.DatabaseURL)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return printMigrationVersion(cmd, cfg.DatabaseURL)
	},
}

func printMigrationVersion(cmd *cobra.Command, databaseURL string) error {
	version, dirty, err := repository.MigrationVersion(databaseURL)
	if err != nil {
		return err
	}

	if outputFormat == formatJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"version": version, "dirty": dirty})
	}

	status := "clean"
	if dirty {
		status = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d (%s)\n", version, status)
	return nil
}

func init() {
	migrateDownCmd.Flags().Int("steps", 1, "Number of migrations to roll back")
	migrateDownCmd.Flags().Bool("all", false, "Roll back every migration")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}
