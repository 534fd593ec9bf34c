package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/redstone-finance/solana-connector/internal/jobs"
	"github.com/redstone-finance/solana-connector/internal/metrics"
	"github.com/redstone-finance/solana-connector/internal/pusher"
	"github.com/redstone-finance/solana-connector/pkg/logger"
	"github.com/redstone-finance/solana-connector/pusher/internal/api"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Push on a fixed interval and serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		logg := logger.S()
		logg.Infof("starting [%s]...", cfg.ServiceName)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := newStack(ctx, cfg)
		if err != nil {
			logg.Fatalw("failed to connect", "error", err)
		}
		defer s.close()
		if err := s.withPusher(ctx); err != nil {
			logg.Fatalw("failed to init pusher", "error", err)
		}

		// --- Scheduler ---
		scheduler := jobs.NewScheduler(logger.Named("scheduler"), "price-push", cfg.PushInterval,
			func(ctx context.Context) error {
				return s.service.PushAll(ctx, pusher.TriggerScheduler)
			}).
			OnIteration(func(_ uint64, _ time.Time, err error) {
				metrics.IncSchedulerIteration(err)
			})
		go scheduler.Start(ctx)

		// --- Fiber HTTP Server ---
		app := fiber.New(fiber.Config{
			ReadTimeout:  cfg.HTTPReadTimeout,
			WriteTimeout: cfg.HTTPWriteTimeout,
			IdleTimeout:  cfg.HTTPIdleTimeout,
			BodyLimit:    cfg.HTTPBodyLimit,
		})
		handler := api.NewPushHandler(logger.Named("api"), s.service, s.reader, s.store, cfg.FeedIDs)
		api.RegisterRoutes(app, s.nc, s.store, handler)

		go func() {
			logg.Infof("HTTP API listening on :%d", cfg.Port)
			if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
				logg.Fatalw("fiber.listen_failed", "error", err)
			}
		}()

		logg.Infow("["+cfg.ServiceName+"] running",
			"network", cfg.Network,
			"feeds", cfg.FeedIDs,
			"delivery", cfg.DeliveryMode,
			"interval", cfg.PushInterval)

		<-ctx.Done()
		logg.Infof("shutting down [%s]...", cfg.ServiceName)

		scheduler.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logg.Warnw("fiber.shutdown_failed", "error", err)
		}
		logger.L().Info("shutdown.complete",
			zap.Uint64("iterations", scheduler.Iterations()),
			zap.Uint64("failures", scheduler.Failures()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
