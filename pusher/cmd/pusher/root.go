package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/redstone-finance/solana-connector/pkg/logger"
	"github.com/redstone-finance/solana-connector/pusher/pkg/config"
)

var (
	// Flag overrides for the matching env settings.
	flagPrivateKey string
	flagNetwork    string
	flagFeedID     string
)

var rootCmd = &cobra.Command{
	Use:   "pusher",
	Short: "Pushes RedStone signed prices to the Solana price program",
	Long: `pusher fetches signed RedStone price packages from the oracle gateways,
wraps them in a process_redstone_payload instruction and delivers the signed
transaction to Solana, either through the cluster RPC or an HTTP relay.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagPrivateKey, "private-key", "", "base58 signer secret key (overrides PRIVATE_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagNetwork, "network", "", "cluster: mainnet-beta, testnet, devnet or localnet (overrides NETWORK)")
	rootCmd.PersistentFlags().StringVar(&flagFeedID, "feed-id", "", "single feed to handle (overrides FEED_IDS)")
}

// loadConfig reads env, applies flag overrides and initializes logging.
func loadConfig() *config.Config {
	cfg := config.Load()
	if flagPrivateKey != "" {
		cfg.PrivateKey = flagPrivateKey
	}
	if flagNetwork != "" {
		cfg.Network = flagNetwork
	}
	if flagFeedID != "" {
		cfg.FeedIDs = []string{flagFeedID}
	}
	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	return cfg
}
