package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionScope/internal/dex"
	"positionScope/internal/indexer"
)

func newTokensCmd() *cobra.Command {
	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Token registry tools",
	}
	tokensCmd.AddCommand(&cobra.Command{
		Use:   "verify [address...]",
		Short: "Compare registry decimals and symbols with on-chain ERC20 metadata",
		Long:  "Compare registry decimals and symbols with on-chain ERC20 metadata. Extra addresses are resolved and logged.",
		RunE:  runTokensVerify,
	})
	return tokensCmd
}

func runTokensVerify(cmd *cobra.Command, args []string) error {
	extra, err := indexer.ParseAddresses("token", args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	mismatches := 0
	for _, token := range a.registry.Tokens() {
		if token.Address == (common.Address{}) {
			continue
		}
		meta, err := dex.FetchTokenMeta(ctx, a.chain, token.Address, a.logger)
		if err != nil {
			a.logger.Warn("token metadata unavailable", zap.String("symbol", token.Symbol), zap.Error(err))
			mismatches++
			continue
		}
		if meta.Decimals != token.Decimals {
			a.logger.Warn("decimals mismatch",
				zap.String("symbol", token.Symbol),
				zap.Uint8("registry", token.Decimals),
				zap.Uint8("chain", meta.Decimals),
			)
			mismatches++
			continue
		}
		if meta.Symbol != "" && meta.Symbol != token.Symbol {
			a.logger.Info("symbol differs from chain",
				zap.String("symbol", token.Symbol),
				zap.String("chain", meta.Symbol),
			)
		}
		a.logger.Info("token ok", zap.String("symbol", token.Symbol), zap.String("address", token.Address.Hex()))
	}
	for _, addr := range extra {
		token, err := a.resolver.Resolve(ctx, addr)
		if err != nil {
			a.logger.Warn("token metadata unavailable", zap.String("address", addr.Hex()), zap.Error(err))
			mismatches++
			continue
		}
		a.logger.Info("token resolved",
			zap.String("address", addr.Hex()),
			zap.String("symbol", token.Symbol),
			zap.Uint8("decimals", token.Decimals),
		)
	}
	if mismatches > 0 {
		return fmt.Errorf("%d registry tokens failed verification", mismatches)
	}
	return nil
}
