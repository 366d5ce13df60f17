package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Taichi-iskw/yt-rank/internal/handler"
	"github.com/Taichi-iskw/yt-rank/internal/logger"
	"github.com/Taichi-iskw/yt-rank/internal/router"
)

// serveCmd starts the read API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ranking API over HTTP",
	Long: `Serve the read-only ranking API, health probes and Prometheus metrics.
With --with-scheduler the refresh job also runs in-process on collector.schedule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// The server logs to stdout like any other service
		services, cleanup, err := NewServiceFactory().WithLogWriter(os.Stdout).CreateServices(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		log := logger.With("server")

		port, _ := cmd.Flags().GetString("port")
		if port == "" {
			port = services.Config.Server.Port
		}

		app := fiber.New(fiber.Config{
			AppName:      "yt-rank API",
			ServerHeader: "yt-rank",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		})
		router.Setup(app, &router.Handlers{
			Channel: handler.NewChannelHandler(services.Ranking),
			Video:   handler.NewVideoHandler(services.Videos),
			Health:  handler.NewHealthHandler(services.Pool, services.Cache),
		}, services.Telemetry, services.Config.Server.CORSOrigins)

		g, gctx := errgroup.WithContext(ctx)

		withScheduler, _ := cmd.Flags().GetBool("with-scheduler")
		if withScheduler {
			sched, err := newRefreshScheduler(services, cmd)
			if err != nil {
				return err
			}
			g.Go(func() error {
				if err := sched.Start(gctx); err != nil && gctx.Err() == nil {
					return err
				}
				return nil
			})
		}

		g.Go(func() error {
			log.Info().Str("port", port).Bool("scheduler", withScheduler).Msg("server starting")
			return app.Listen(":"+port, fiber.ListenConfig{
				GracefulContext:       gctx,
				ShutdownTimeout:       10 * time.Second,
				DisableStartupMessage: true,
			})
		})

		if err := g.Wait(); err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		log.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "Listen port (defaults to server.port)")
	serveCmd.Flags().Bool("with-scheduler", false, "Run the refresh job in-process")
	serveCmd.Flags().String("spec", "", "Cron spec with seconds (defaults to collector.schedule)")

	rootCmd.AddCommand(serveCmd)
}
