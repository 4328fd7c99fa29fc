package liquidity

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"positionScope/internal/dex"
	"positionScope/internal/model"
)

// Permit2Address is the canonical Permit2 deployment.
var Permit2Address = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")

var (
	maxUint160 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))
	maxUint48  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 48), big.NewInt(1))
)

// Sender signs, sends and waits for transactions. chain.Transactor
// satisfies it.
type Sender interface {
	From() common.Address
	Transact(ctx context.Context, contract common.Address, parsed abi.ABI, value *big.Int, method string, args ...interface{}) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// ChainRemote reads the liquidity helper and the position manager.
type ChainRemote struct {
	caller     dex.ContractCaller
	helper     common.Address
	manager    common.Address
	helperABI  abi.ABI
	managerABI abi.ABI
}

func NewChainRemote(caller dex.ContractCaller, helper, manager common.Address) (*ChainRemote, error) {
	helperABI, err := dex.LiquidityHelperABI()
	if err != nil {
		return nil, err
	}
	managerABI, err := dex.PositionManagerABI()
	if err != nil {
		return nil, err
	}
	return &ChainRemote{caller: caller, helper: helper, manager: manager, helperABI: helperABI, managerABI: managerABI}, nil
}

func (r *ChainRemote) LiquidityForAmounts(ctx context.Context, sqrtPriceX96, sqrtPriceA, sqrtPriceB, amount0, amount1 *big.Int) (*big.Int, error) {
	values, err := dex.Call(ctx, r.caller, r.helper, r.helperABI, "getLiquidityForAmounts", sqrtPriceX96, sqrtPriceA, sqrtPriceB, amount0, amount1)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("getLiquidityForAmounts: unexpected output count %d", len(values))
	}
	return dex.AsBigInt(values[0])
}

func (r *ChainRemote) AmountsForPercentage(ctx context.Context, token0, token1 common.Address, bps, tokenID *big.Int, hook common.Address) (*big.Int, *big.Int, error) {
	values, err := dex.Call(ctx, r.caller, r.helper, r.helperABI, "getAmount0andAmount1forLiquidityPercentage", token0, token1, bps, tokenID, hook)
	if err != nil {
		return nil, nil, err
	}
	if len(values) != 2 {
		return nil, nil, fmt.Errorf("getAmount0andAmount1forLiquidityPercentage: unexpected output count %d", len(values))
	}
	amount0, err := dex.AsBigInt(values[0])
	if err != nil {
		return nil, nil, err
	}
	amount1, err := dex.AsBigInt(values[1])
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func (r *ChainRemote) PositionLiquidity(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	values, err := dex.Call(ctx, r.caller, r.manager, r.managerABI, "getPositionLiquidity", tokenID)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("getPositionLiquidity: unexpected output count %d", len(values))
	}
	return dex.AsBigInt(values[0])
}

// StateViewPricer reads slot0 of a V4 pool through StateView.
type StateViewPricer struct {
	caller    dex.ContractCaller
	stateView common.Address
	parsed    abi.ABI
}

func NewStateViewPricer(caller dex.ContractCaller, stateView common.Address) (*StateViewPricer, error) {
	parsed, err := dex.StateViewABI()
	if err != nil {
		return nil, err
	}
	return &StateViewPricer{caller: caller, stateView: stateView, parsed: parsed}, nil
}

func (p *StateViewPricer) SqrtPriceX96(ctx context.Context, key model.PoolKey) (*big.Int, error) {
	id, err := dex.PoolID(dex.PoolKey{
		Currency0:   key.Currency0,
		Currency1:   key.Currency1,
		Fee:         new(big.Int).SetUint64(uint64(key.Fee)),
		TickSpacing: big.NewInt(int64(key.TickSpacing)),
		Hooks:       key.Hooks,
	})
	if err != nil {
		return nil, err
	}
	values, err := dex.Call(ctx, p.caller, p.stateView, p.parsed, "getSlot0", id)
	if err != nil {
		return nil, err
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("getSlot0: unexpected output count %d", len(values))
	}
	price, err := dex.AsBigInt(values[0])
	if err != nil {
		return nil, err
	}
	if price.Sign() == 0 {
		return nil, fmt.Errorf("pool %x not initialized", id)
	}
	return price, nil
}

// Permit2Approver grants the position manager allowance in two hops:
// ERC20 approval of Permit2, then a Permit2 allowance for the manager.
type Permit2Approver struct {
	caller     dex.ContractCaller
	sender     Sender
	permit2    common.Address
	spender    common.Address
	erc20ABI   abi.ABI
	permit2ABI abi.ABI
	now        func() time.Time
	logger     *zap.Logger
}

func NewPermit2Approver(caller dex.ContractCaller, sender Sender, permit2, spender common.Address, logger *zap.Logger) (*Permit2Approver, error) {
	erc20ABI, err := dex.ERC20ABI()
	if err != nil {
		return nil, err
	}
	permit2ABI, err := dex.Permit2ABI()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Permit2Approver{
		caller:     caller,
		sender:     sender,
		permit2:    permit2,
		spender:    spender,
		erc20ABI:   erc20ABI,
		permit2ABI: permit2ABI,
		now:        time.Now,
		logger:     logger,
	}, nil
}

func (a *Permit2Approver) Approve(ctx context.Context, token common.Address, amount *big.Int) error {
	owner := a.sender.From()

	current, err := dex.Allowance(ctx, a.caller, token, owner, a.permit2)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		a.logger.Info("approving permit2", zap.String("token", token.Hex()))
		if err := a.send(ctx, token, a.erc20ABI, "approve", a.permit2, math.MaxBig256); err != nil {
			return err
		}
	}

	values, err := dex.Call(ctx, a.caller, a.permit2, a.permit2ABI, "allowance", owner, token, a.spender)
	if err != nil {
		return err
	}
	if len(values) != 3 {
		return fmt.Errorf("permit2 allowance: unexpected output count %d", len(values))
	}
	allowed, err := dex.AsBigInt(values[0])
	if err != nil {
		return err
	}
	expiration, err := dex.AsBigInt(values[1])
	if err != nil {
		return err
	}
	if allowed.Cmp(amount) >= 0 && expiration.Cmp(big.NewInt(a.now().Unix())) > 0 {
		return nil
	}
	a.logger.Info("approving position manager through permit2", zap.String("token", token.Hex()))
	return a.send(ctx, a.permit2, a.permit2ABI, "approve", token, a.spender, maxUint160, maxUint48)
}

func (a *Permit2Approver) send(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) error {
	tx, err := a.sender.Transact(ctx, contract, parsed, nil, method, args...)
	if err != nil {
		return err
	}
	receipt, err := a.sender.WaitMined(ctx, tx)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s %s", ErrReverted, method, tx.Hash().Hex())
	}
	return nil
}

// ManagerSubmitter calls modifyLiquidities on the position manager.
type ManagerSubmitter struct {
	sender  Sender
	manager common.Address
	parsed  abi.ABI
}

func NewManagerSubmitter(sender Sender, manager common.Address) (*ManagerSubmitter, error) {
	parsed, err := dex.PositionManagerABI()
	if err != nil {
		return nil, err
	}
	return &ManagerSubmitter{sender: sender, manager: manager, parsed: parsed}, nil
}

func (s *ManagerSubmitter) Submit(ctx context.Context, unlockData []byte, deadline, value *big.Int) (common.Hash, error) {
	tx, err := s.sender.Transact(ctx, s.manager, s.parsed, value, "modifyLiquidities", unlockData, deadline)
	if err != nil {
		return common.Hash{}, err
	}
	receipt, err := s.sender.WaitMined(ctx, tx)
	if err != nil {
		return tx.Hash(), err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash(), fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex())
	}
	return tx.Hash(), nil
}
