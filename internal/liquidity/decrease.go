package liquidity

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/dex"
	"positionScope/internal/model"
)

// DecreaseInput is a removal of Percent (1-100) of the selected position.
type DecreaseInput struct {
	Percent         int
	SlippagePercent float64
}

// Decrease removes liquidity from the selected position and takes both
// currencies, including accrued fees, to the owner.
func (o *Orchestrator) Decrease(ctx context.Context, in DecreaseInput) (Outcome, error) {
	return o.run(ctx, ControlDecrease, LabelDecrease, func(ctx context.Context, pos model.Position) (common.Hash, error) {
		hash, err := o.decrease(ctx, pos, in)
		if err != nil {
			return common.Hash{}, fmt.Errorf("decrease liquidity: %w", err)
		}
		return hash, nil
	})
}

func (o *Orchestrator) decrease(ctx context.Context, pos model.Position, in DecreaseInput) (common.Hash, error) {
	bps, err := PercentToBps(in.Percent)
	if err != nil {
		return common.Hash{}, err
	}
	slippage, err := SlippageBps(in.SlippagePercent)
	if err != nil {
		return common.Hash{}, err
	}

	plan, err := o.decreasePlan(ctx, pos, orderOf(pos), bps, slippage)
	if err != nil {
		return common.Hash{}, err
	}
	unlock, err := plan.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return o.submitter.Submit(ctx, unlock, o.deadline(), new(big.Int))
}

func (o *Orchestrator) decreasePlan(ctx context.Context, pos model.Position, order ordered, bps, slippage int64) (dex.Plan, error) {
	amount0, amount1, err := o.remote.AmountsForPercentage(ctx, order.token0, order.token1, big.NewInt(bps), pos.TokenID, o.cfg.Hook)
	if err != nil {
		return dex.Plan{}, fmt.Errorf("amounts for percentage: %w", err)
	}
	min0 := MinOut(amount0, slippage)
	min1 := MinOut(amount1, slippage)

	current, err := o.remote.PositionLiquidity(ctx, pos.TokenID)
	if err != nil {
		return dex.Plan{}, fmt.Errorf("position liquidity: %w", err)
	}
	liquidity := RemovalLiquidity(current, bps)
	o.logger.Info("decrease sized",
		zap.String("position", pos.ID),
		zap.Int64("bps", bps),
		zap.String("liquidity", liquidity.String()),
		zap.String("amount0_min", min0.String()),
		zap.String("amount1_min", min1.String()),
	)

	params, err := dex.EncodeModifyLiquidity(pos.TokenID, liquidity, min0, min1)
	if err != nil {
		return dex.Plan{}, err
	}
	take, err := dex.EncodeTakePair(order.token0, order.token1, o.cfg.Owner)
	if err != nil {
		return dex.Plan{}, err
	}
	var plan dex.Plan
	plan.Add(dex.ActionDecreaseLiquidity, params)
	plan.Add(dex.ActionTakePair, take)
	return plan, nil
}
