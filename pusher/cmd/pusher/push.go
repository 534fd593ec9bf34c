package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/redstone-finance/solana-connector/internal/jobs"
	"github.com/redstone-finance/solana-connector/internal/pusher"
	"github.com/redstone-finance/solana-connector/pkg/logger"
)

var pushCount int

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the configured feeds once (or --count times) and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := newStack(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.close()
		if err := s.withPusher(ctx); err != nil {
			return err
		}

		scheduler := jobs.NewScheduler(logger.Named("scheduler"), "price-push", cfg.PushInterval,
			func(ctx context.Context) error {
				return s.service.PushAll(ctx, pusher.TriggerCLI)
			})
		if err := scheduler.RunN(ctx, pushCount); err != nil {
			return err
		}
		if n := scheduler.Failures(); n > 0 {
			return fmt.Errorf("%d of %d push iterations failed", n, scheduler.Iterations())
		}
		return nil
	},
}

func init() {
	pushCmd.Flags().IntVar(&pushCount, "count", 1, "number of push iterations")
	rootCmd.AddCommand(pushCmd)
}
