package liquidity

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/dex"
	"positionScope/internal/model"
	"positionScope/internal/registry"
	"positionScope/internal/units"
)

// IncreaseInput is the user's deposit, in display decimals of the
// position's token A and token B.
type IncreaseInput struct {
	AmountA         string
	AmountB         string
	SlippagePercent float64
}

// ordered is a position's tokens and per-token values in canonical order.
type ordered struct {
	token0, token1 common.Address
	swapped        bool
}

func orderOf(pos model.Position) ordered {
	token0, token1, swapped := registry.SortPair(pos.TokenAAddress, pos.TokenBAddress)
	return ordered{token0: token0, token1: token1, swapped: swapped}
}

// pair returns a and b (given in token A / token B order) in currency order.
func (o ordered) pair(a, b *big.Int) (*big.Int, *big.Int) {
	if o.swapped {
		return b, a
	}
	return a, b
}

// Increase deposits into the selected position.
func (o *Orchestrator) Increase(ctx context.Context, in IncreaseInput) (Outcome, error) {
	return o.run(ctx, ControlIncrease, LabelIncrease, func(ctx context.Context, pos model.Position) (common.Hash, error) {
		hash, err := o.increase(ctx, pos, in)
		if err != nil {
			return common.Hash{}, fmt.Errorf("increase liquidity: %w", err)
		}
		return hash, nil
	})
}

func (o *Orchestrator) increase(ctx context.Context, pos model.Position, in IncreaseInput) (common.Hash, error) {
	amountA, err := parseAmount(in.AmountA, pos.DecimalsA)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s amount: %w", pos.TokenA, err)
	}
	amountB, err := parseAmount(in.AmountB, pos.DecimalsB)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s amount: %w", pos.TokenB, err)
	}
	if amountA.Sign() == 0 && amountB.Sign() == 0 {
		return common.Hash{}, fmt.Errorf("nothing to deposit")
	}
	bps, err := SlippageBps(in.SlippagePercent)
	if err != nil {
		return common.Hash{}, err
	}

	order := orderOf(pos)
	amount0, amount1 := order.pair(amountA, amountB)
	fees0, fees1 := order.pair(nonNegative(pos.FeesA), nonNegative(pos.FeesB))

	plan, value, err := o.increasePlan(ctx, pos, order, amount0, amount1, fees0, fees1, bps)
	if err != nil {
		return common.Hash{}, err
	}
	unlock, err := plan.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return o.submitter.Submit(ctx, unlock, o.deadline(), value)
}

// increasePlan approves the fee-netted amounts, sizes the liquidity delta
// and builds the action list.
func (o *Orchestrator) increasePlan(ctx context.Context, pos model.Position, order ordered, amount0, amount1, fees0, fees1 *big.Int, bps int64) (dex.Plan, *big.Int, error) {
	net0 := subFloor(amount0, fees0)
	net1 := subFloor(amount1, fees1)
	if err := o.approve(ctx, order.token0, net0); err != nil {
		return dex.Plan{}, nil, err
	}
	if err := o.approve(ctx, order.token1, net1); err != nil {
		return dex.Plan{}, nil, err
	}

	sqrtPrice, err := o.pricer.SqrtPriceX96(ctx, pos.PoolKey)
	if err != nil {
		return dex.Plan{}, nil, fmt.Errorf("pool price: %w", err)
	}
	sqrtLower, err := dex.SqrtRatioAtTick(-dex.FullRangeTick)
	if err != nil {
		return dex.Plan{}, nil, err
	}
	sqrtUpper, err := dex.SqrtRatioAtTick(dex.FullRangeTick)
	if err != nil {
		return dex.Plan{}, nil, err
	}
	min0 := MinOut(amount0, bps)
	min1 := MinOut(amount1, bps)
	liquidity, err := o.remote.LiquidityForAmounts(ctx, sqrtPrice, sqrtLower, sqrtUpper, min0, min1)
	if err != nil {
		return dex.Plan{}, nil, fmt.Errorf("liquidity for amounts: %w", err)
	}
	o.logger.Info("increase sized",
		zap.String("position", pos.ID),
		zap.String("liquidity", liquidity.String()),
		zap.String("amount0_max", amount0.String()),
		zap.String("amount1_max", amount1.String()),
		zap.Int64("slippage_bps", bps),
	)

	params, err := dex.EncodeModifyLiquidity(pos.TokenID, liquidity, amount0, amount1)
	if err != nil {
		return dex.Plan{}, nil, err
	}
	var plan dex.Plan
	plan.Add(dex.ActionIncreaseLiquidity, params)

	leftover0 := subFloor(fees0, amount0)
	leftover1 := subFloor(fees1, amount1)
	if leftover0.Sign() > 0 || leftover1.Sign() > 0 {
		for _, currency := range []common.Address{order.token0, order.token1} {
			closeParams, err := dex.EncodeCloseCurrency(currency)
			if err != nil {
				return dex.Plan{}, nil, err
			}
			plan.Add(dex.ActionCloseCurrency, closeParams)
		}
	} else {
		settle, err := dex.EncodeSettlePair(order.token0, order.token1)
		if err != nil {
			return dex.Plan{}, nil, err
		}
		plan.Add(dex.ActionSettlePair, settle)
	}

	value := new(big.Int)
	if order.token0 == (common.Address{}) {
		value.Set(amount0)
	}
	return plan, value, nil
}

func (o *Orchestrator) approve(ctx context.Context, token common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 || token == (common.Address{}) {
		return nil
	}
	if err := o.approver.Approve(ctx, token, amount); err != nil {
		return fmt.Errorf("approve %s: %w", token.Hex(), err)
	}
	return nil
}

func parseAmount(text string, decimals uint8) (*big.Int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return new(big.Int), nil
	}
	amount, err := units.Parse(text, decimals)
	if err != nil {
		return nil, err
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", text)
	}
	return amount, nil
}

// subFloor is max(a - b, 0).
func subFloor(a, b *big.Int) *big.Int {
	out := new(big.Int).Sub(a, b)
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}

func nonNegative(v *big.Int) *big.Int {
	if v == nil || v.Sign() < 0 {
		return new(big.Int)
	}
	return v
}
