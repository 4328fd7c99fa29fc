package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionScope/internal/balances"
	"positionScope/internal/bridge"
	"positionScope/internal/chain"
	"positionScope/internal/liquidity"
	"positionScope/internal/model"
)

func newIncreaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "increase",
		Short: "Add liquidity to a full-range position",
		RunE:  runIncrease,
	}
	addLiquidityFlags(cmd)
	cmd.Flags().String("amount-a", "", "deposit of the position's token A, display units")
	cmd.Flags().String("amount-b", "", "deposit of the position's token B, display units")
	return cmd
}

func newDecreaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decrease",
		Short: "Remove liquidity from a position and claim its fees",
		RunE:  runDecrease,
	}
	addLiquidityFlags(cmd)
	cmd.Flags().Int("percent", 100, "share of the position to remove, 1-100")
	return cmd
}

func addLiquidityFlags(cmd *cobra.Command) {
	addReadFlags(cmd)
	cmd.Flags().String("private-key", "", "hex private key of the owner")
	cmd.Flags().String("permit2", "", "Permit2 address")
	cmd.Flags().Uint64("position", 0, "token id of the position, 0 selects the first")
	cmd.Flags().Float64("slippage", 1.0, "slippage tolerance in percent")
	cmd.Flags().Duration("deadline", 160*time.Second, "transaction deadline from submission")
	cmd.Flags().Duration("refresh-delay", 2*time.Second, "wait before refreshing after confirmation")
}

func runIncrease(cmd *cobra.Command, _ []string) error {
	amountA, _ := cmd.Flags().GetString("amount-a")
	amountB, _ := cmd.Flags().GetString("amount-b")
	return runLiquidity(cmd, liquidity.ControlIncrease, func(ctx context.Context, o *liquidity.Orchestrator, slippage float64) (liquidity.Outcome, error) {
		return o.Increase(ctx, liquidity.IncreaseInput{AmountA: amountA, AmountB: amountB, SlippagePercent: slippage})
	})
}

func runDecrease(cmd *cobra.Command, _ []string) error {
	percent, _ := cmd.Flags().GetInt("percent")
	return runLiquidity(cmd, liquidity.ControlDecrease, func(ctx context.Context, o *liquidity.Orchestrator, slippage float64) (liquidity.Outcome, error) {
		return o.Decrease(ctx, liquidity.DecreaseInput{Percent: percent, SlippagePercent: slippage})
	})
}

type liquidityOp func(ctx context.Context, o *liquidity.Orchestrator, slippage float64) (liquidity.Outcome, error)

func runLiquidity(cmd *cobra.Command, control liquidity.Control, op liquidityOp) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.PrivateKey == "" {
		return fmt.Errorf("private key is required")
	}
	transactor, err := chain.NewTransactor(a.chain, a.cfg.PrivateKey, a.logger.Named("tx"))
	if err != nil {
		return err
	}
	owner := transactor.From()

	manager, err := a.address("position-manager", a.cfg.PositionManager)
	if err != nil {
		return err
	}
	helper, err := a.address("liquidity-helper", a.cfg.LiquidityHelper)
	if err != nil {
		return err
	}
	stateView, err := a.address("state-view", a.cfg.StateView)
	if err != nil {
		return err
	}
	permit2, err := a.address("permit2", a.cfg.Permit2)
	if err != nil {
		return err
	}

	session, err := a.session(cmd, owner, nil)
	if err != nil {
		return err
	}
	locks := liquidity.NewLocks()
	controls := bridge.NewControls(bridge.NewLogRenderer(a.logger.Named("ui")), locks, a.logger)
	session.Subscribe(controls)

	report, err := session.Reconcile(ctx)
	if err != nil {
		return err
	}
	logReport(a.logger, report)

	if id, _ := cmd.Flags().GetUint64("position"); id != 0 {
		if err := controls.Select(control, model.PositionKey(new(big.Int).SetUint64(id))); err != nil {
			return err
		}
	}

	remote, err := liquidity.NewChainRemote(a.chain, helper, manager)
	if err != nil {
		return err
	}
	pricer, err := liquidity.NewStateViewPricer(a.chain, stateView)
	if err != nil {
		return err
	}
	approver, err := liquidity.NewPermit2Approver(a.chain, transactor, permit2, manager, a.logger.Named("approve"))
	if err != nil {
		return err
	}
	submitter, err := liquidity.NewManagerSubmitter(transactor, manager)
	if err != nil {
		return err
	}
	refresher, err := balances.NewRefresher(a.chain, a.registry, a.cfg.MaxRetries, a.cfg.RetryBackoff, a.logger.Named("balances"))
	if err != nil {
		return err
	}

	orch, err := liquidity.NewOrchestrator(liquidity.Deps{
		Positions:  session.Cache(),
		Remote:     remote,
		Pricer:     pricer,
		Approver:   approver,
		Submitter:  submitter,
		Reconciler: session,
		Balances:   refresher,
		Bridge:     controls,
		Locks:      locks,
	}, liquidity.Config{
		Owner:       owner,
		Hook:        a.hook,
		Deadline:    a.cfg.Deadline,
		SettleDelay: a.cfg.RefreshDelay,
	}, a.logger.Named("liquidity"))
	if err != nil {
		return err
	}

	out, err := op(ctx, orch, a.cfg.Slippage)
	if err != nil {
		return err
	}
	if out.Skipped != nil {
		if errors.Is(out.Skipped, liquidity.ErrNoPosition) {
			a.logger.Info("no position to modify", zap.String("owner", owner.Hex()))
			return nil
		}
		return out.Skipped
	}

	a.logger.Info("liquidity modified", zap.String("tx", out.TxHash.Hex()))
	return printCache(session)
}
