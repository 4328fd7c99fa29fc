package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"positionScope/internal/balances"
	"positionScope/internal/bridge"
	"positionScope/internal/indexer"
	"positionScope/internal/liquidity"
	"positionScope/internal/position"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the ownership index and the position cache fresh until interrupted",
		RunE:  runWatch,
	}
	addReadFlags(cmd)
	addIndexFlags(cmd)
	cmd.Flags().Duration("interval", time.Minute, "time between reconciliation passes")
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	owner, err := a.address("owner", a.cfg.Owner)
	if err != nil {
		return err
	}
	idx, err := a.maybeIndex(cmd)
	if err != nil {
		return err
	}
	session, err := a.session(cmd, owner, idx)
	if err != nil {
		return err
	}

	controls := bridge.NewControls(bridge.NewLogRenderer(a.logger.Named("ui")), liquidity.NewLocks(), a.logger)
	session.Subscribe(controls)

	refresher, err := balances.NewRefresher(a.chain, a.registry, a.cfg.MaxRetries, a.cfg.RetryBackoff, a.logger.Named("balances"))
	if err != nil {
		return err
	}

	interval := a.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	a.logger.Info("watch start",
		zap.String("owner", owner.Hex()),
		zap.Duration("interval", interval),
		zap.Bool("use_index", idx != nil),
	)

	g, ctx := errgroup.WithContext(ctx)
	if idx != nil {
		g.Go(func() error { return syncLoop(ctx, idx, interval, a.logger) })
	}
	g.Go(func() error { return reconcileLoop(ctx, session, refresher, owner, interval, a.logger) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func syncLoop(ctx context.Context, idx *indexer.OwnerIndexer, interval time.Duration, logger *zap.Logger) error {
	return every(ctx, interval, func(ctx context.Context) {
		if err := idx.Sync(ctx); err != nil && !errors.Is(err, indexer.ErrSyncRunning) && ctx.Err() == nil {
			logger.Warn("ownership sync failed", zap.Error(err))
		}
	})
}

func reconcileLoop(ctx context.Context, session *position.Session, refresher *balances.Refresher, owner common.Address, interval time.Duration, logger *zap.Logger) error {
	return every(ctx, interval, func(ctx context.Context) {
		report, err := session.Reconcile(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("reconciliation failed", zap.Error(err))
			}
			return
		}
		logReport(logger, report)

		if err := refresher.Refresh(ctx, owner); err != nil {
			return
		}
		_, bals := refresher.Latest()
		for _, bal := range bals {
			logger.Info("balance", zap.String("symbol", bal.Symbol), zap.String("amount", bal.Display))
		}
	})
}

// every runs fn now and then on every tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		fn(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
