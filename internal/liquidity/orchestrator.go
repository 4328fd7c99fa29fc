package liquidity

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/model"
	"positionScope/internal/position"
)

var (
	// ErrBusy is reported when the control already has an operation in
	// flight. Nothing was done.
	ErrBusy = errors.New("operation already in progress")
	// ErrNoPosition is reported when no cached position is selected.
	// Nothing was done.
	ErrNoPosition = errors.New("no position selected")
	// ErrReverted is returned when a submitted transaction fails on chain.
	ErrReverted = errors.New("transaction reverted")
)

// Labels restored on a control when its operation finishes.
const (
	LabelIncrease = "Increase Liquidity"
	LabelDecrease = "Decrease Liquidity and Claim Fees"
	LabelPending  = "Approve transactions in wallet..."
)

// Remote is the read surface of the helper and position manager
// contracts used to size a modification.
type Remote interface {
	LiquidityForAmounts(ctx context.Context, sqrtPriceX96, sqrtPriceA, sqrtPriceB, amount0, amount1 *big.Int) (*big.Int, error)
	AmountsForPercentage(ctx context.Context, token0, token1 common.Address, bps, tokenID *big.Int, hook common.Address) (amount0, amount1 *big.Int, err error)
	PositionLiquidity(ctx context.Context, tokenID *big.Int) (*big.Int, error)
}

// Pricer reads the current pool price.
type Pricer interface {
	SqrtPriceX96(ctx context.Context, key model.PoolKey) (*big.Int, error)
}

// Approver makes sure the position manager may pull amount of token.
type Approver interface {
	Approve(ctx context.Context, token common.Address, amount *big.Int) error
}

// Submitter sends modifyLiquidities and waits for it to be mined. value is
// the native amount attached.
type Submitter interface {
	Submit(ctx context.Context, unlockData []byte, deadline, value *big.Int) (common.Hash, error)
}

// Reconciler re-reads positions after a confirmed modification.
type Reconciler interface {
	Reconcile(ctx context.Context) (position.Report, error)
}

// BalanceRefresher re-reads wallet balances.
type BalanceRefresher interface {
	Refresh(ctx context.Context, owner common.Address) error
}

// Bridge is the presentation surface the orchestrator drives.
type Bridge interface {
	SelectedPositionID(control Control) (string, bool)
	SetControlEnabled(control Control, enabled bool, label string)
}

// PositionSource looks up cached positions. position.Cache satisfies it.
type PositionSource interface {
	Position(key string) (model.Position, bool)
}

// Config holds the fixed parameters of the orchestrator.
type Config struct {
	Owner common.Address
	Hook  common.Address
	// Deadline is added to the submission time.
	Deadline time.Duration
	// SettleDelay is waited before the balance refresh and again before
	// reconciliation.
	SettleDelay time.Duration
}

// Outcome reports what an operation did. Skipped is ErrBusy or
// ErrNoPosition when nothing was attempted.
type Outcome struct {
	TxHash  common.Hash
	Skipped error
}

// Orchestrator runs increase and decrease operations, one in flight per
// control.
type Orchestrator struct {
	positions PositionSource
	remote    Remote
	pricer    Pricer
	approver  Approver
	submitter Submitter
	reconcile Reconciler
	balances  BalanceRefresher
	bridge    Bridge
	locks     *Locks
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// Deps groups the collaborators of an Orchestrator.
type Deps struct {
	Positions  PositionSource
	Remote     Remote
	Pricer     Pricer
	Approver   Approver
	Submitter  Submitter
	Reconciler Reconciler
	Balances   BalanceRefresher
	Bridge     Bridge
	Locks      *Locks
}

func NewOrchestrator(deps Deps, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	switch {
	case deps.Positions == nil:
		return nil, fmt.Errorf("position source is nil")
	case deps.Remote == nil:
		return nil, fmt.Errorf("liquidity remote is nil")
	case deps.Pricer == nil:
		return nil, fmt.Errorf("pricer is nil")
	case deps.Approver == nil:
		return nil, fmt.Errorf("approver is nil")
	case deps.Submitter == nil:
		return nil, fmt.Errorf("submitter is nil")
	case deps.Bridge == nil:
		return nil, fmt.Errorf("bridge is nil")
	}
	if deps.Locks == nil {
		deps.Locks = NewLocks()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 160 * time.Second
	}
	return &Orchestrator{
		positions: deps.Positions,
		remote:    deps.Remote,
		pricer:    deps.Pricer,
		approver:  deps.Approver,
		submitter: deps.Submitter,
		reconcile: deps.Reconciler,
		balances:  deps.Balances,
		bridge:    deps.Bridge,
		locks:     deps.Locks,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepContext,
	}, nil
}

// Locks exposes the control locks so the presentation layer can avoid
// re-enabling a busy control.
func (o *Orchestrator) Locks() *Locks {
	return o.locks
}

// run wraps one operation with the lock protocol. op returns the tx hash
// on success; a nil error with a zero hash means a silent abort.
func (o *Orchestrator) run(ctx context.Context, control Control, label string, op func(ctx context.Context, pos model.Position) (common.Hash, error)) (Outcome, error) {
	if !o.locks.TryAcquire(control) {
		o.logger.Debug("control busy, ignoring trigger", zap.String("control", string(control)))
		return Outcome{Skipped: ErrBusy}, nil
	}
	o.bridge.SetControlEnabled(control, false, LabelPending)

	release := func() {
		o.locks.Release(control)
		o.bridge.SetControlEnabled(control, true, label)
	}

	key, ok := o.bridge.SelectedPositionID(control)
	pos, found := model.Position{}, false
	if ok {
		pos, found = o.positions.Position(key)
	}
	if !found {
		release()
		return Outcome{Skipped: ErrNoPosition}, nil
	}

	hash, err := op(ctx, pos)
	release()
	if err != nil {
		o.logger.Warn("liquidity operation failed",
			zap.String("control", string(control)),
			zap.String("position", pos.ID),
			zap.Error(err),
		)
		return Outcome{}, err
	}

	o.logger.Info("liquidity operation confirmed",
		zap.String("control", string(control)),
		zap.String("position", pos.ID),
		zap.String("tx", hash.Hex()),
	)
	o.afterSuccess(ctx)
	return Outcome{TxHash: hash}, nil
}

// afterSuccess refreshes balances and positions once the chain has had
// time to propagate. Failures here do not undo the confirmed operation.
func (o *Orchestrator) afterSuccess(ctx context.Context) {
	if err := o.sleep(ctx, o.cfg.SettleDelay); err != nil {
		return
	}
	if o.balances != nil {
		if err := o.balances.Refresh(ctx, o.cfg.Owner); err != nil {
			o.logger.Warn("balance refresh failed", zap.Error(err))
		}
	}
	if err := o.sleep(ctx, o.cfg.SettleDelay); err != nil {
		return
	}
	if o.reconcile != nil {
		if _, err := o.reconcile.Reconcile(ctx); err != nil {
			o.logger.Warn("reconciliation after modification failed", zap.Error(err))
		}
	}
}

func (o *Orchestrator) deadline() *big.Int {
	return big.NewInt(o.now().Add(o.cfg.Deadline).Unix())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
