package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var priceCmd = &cobra.Command{
	Use:   "price [feed-id...]",
	Short: "Read and decode the on-chain price accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		feeds := args
		if len(feeds) == 0 {
			feeds = cfg.FeedIDs
		}

		ctx := context.Background()
		s, err := newStack(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.close()

		out := cmd.OutOrStdout()
		for _, feed := range feeds {
			pd, err := s.reader.GetPrice(ctx, feed)
			if err != nil {
				return fmt.Errorf("%s: %w", feed, err)
			}
			price, err := pd.Scaled(8)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\tprice=%s\tvalue=%s\ttimestamp=%s\tlayout=%s\n",
				pd.FeedID, price.String(), pd.Value, pd.Timestamp, pd.Layout)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(priceCmd)
}
