package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "positions",
		Short:        "V4 position reconciliation and liquidity client",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("rpc", "", "RPC URL")
	flags.Int("rpc-rate-limit", 0, "max RPC requests per second, 0 means unlimited")
	flags.String("owner", "", "owner address")
	flags.String("position-finder", "", "position finder contract address")
	flags.String("position-manager", "", "V4 position manager address")
	flags.String("liquidity-helper", "", "liquidity helper contract address")
	flags.String("state-view", "", "V4 StateView address")
	flags.String("hook", "", "pool hook address")
	flags.StringSlice("pair", nil, "token pair symbols (comma-separated)")
	flags.Int("max-retries", 5, "maximum retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newListCmd(), newWatchCmd(), newIncreaseCmd(), newDecreaseCmd(), newOwnersCmd(), newTokensCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// addReadFlags registers the reconciliation tuning flags.
func addReadFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("page-size", 1000, "staked ids per page and regular ids per range")
	cmd.Flags().Int("batch-size", 500, "owned token ids per lookup batch")
	cmd.Flags().Int("batch-concurrency", 1, "lookup batches in flight")
	cmd.Flags().String("min-staking", "0", "minimum staked amount, base units")
	cmd.Flags().String("min-holdings", "0", "minimum held amount, base units")
	cmd.Flags().Duration("poll-interval", time.Second, "wait between ownership scan checks")
	cmd.Flags().Bool("use-index", false, "resolve owned ids from the Transfer log index instead of id ranges")
	cmd.Flags().Float64("apy", 0, "estimated staking APY in percent")
	cmd.Flags().String("out", "", "append snapshots to this JSONL file")
}

// addIndexFlags registers the ownership scan flags.
func addIndexFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("from-block", 0, "first block of the ownership scan")
	cmd.Flags().Uint64("block-batch-size", 2000, "blocks per log query")
	cmd.Flags().String("checkpoint", "./data/owners.json", "ownership checkpoint file")
	cmd.Flags().Bool("checkpoint-enabled", true, "persist the ownership checkpoint")
	cmd.Flags().String("transfer-log", "", "archive raw Transfer logs to this JSONL file")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
