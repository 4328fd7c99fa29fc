package finder

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"

	"positionScope/internal/dex"
	"positionScope/internal/model"
	"positionScope/internal/registry"
	"positionScope/internal/units"
)

const dynamicFeeLabel = "Dynamic Fee"

// FeeTierText renders a pool fee in hundredths of a bip ("0.30%").
func FeeTierText(fee uint32) string {
	if fee == dex.DynamicFeeFlag {
		return dynamicFeeLabel
	}
	return fmt.Sprintf("%.2f%%", float64(fee)/10000)
}

// PenaltyText renders a withdraw penalty given in tenths of a percent.
func PenaltyText(penalty *big.Int) string {
	if penalty == nil {
		return "0%"
	}
	text := units.Format(penalty, 1)
	text = strings.TrimSuffix(text, ".0")
	return text + "%"
}

// Icon is the first character of a symbol, or "?".
func Icon(symbol string) string {
	r, size := utf8.DecodeRuneInString(symbol)
	if size == 0 || r == utf8.RuneError {
		return "?"
	}
	return string(r)
}

// pair is a token pair in canonical order with amounts swapped to match.
type pair struct {
	token0, token1 registry.Token
	swapped        bool
}

func (p pair) order(a, b *big.Int) (*big.Int, *big.Int) {
	if p.swapped {
		return b, a
	}
	return a, b
}

type formatter struct {
	resolver *registry.Resolver
}

func (f formatter) resolvePair(ctx context.Context, a, b common.Address) (pair, error) {
	token0, token1, swapped := registry.SortPair(a, b)
	t0, err := f.resolver.Resolve(ctx, token0)
	if err != nil {
		return pair{}, fmt.Errorf("resolve %s: %w", token0.Hex(), err)
	}
	t1, err := f.resolver.Resolve(ctx, token1)
	if err != nil {
		return pair{}, fmt.Errorf("resolve %s: %w", token1.Hex(), err)
	}
	return pair{token0: t0, token1: t1, swapped: swapped}, nil
}

func (f formatter) base(p pair, id, liquidity, amount0, amount1, poolInfo *big.Int) model.PositionBase {
	lower := dex.DecodeTickLower(poolInfo)
	upper := dex.DecodeTickUpper(poolInfo)
	return model.PositionBase{
		TokenID:          new(big.Int).Set(id),
		Pool:             p.token0.Symbol + "/" + p.token1.Symbol,
		TokenA:           p.token0.Symbol,
		TokenB:           p.token1.Symbol,
		TokenAAddress:    p.token0.Address,
		TokenBAddress:    p.token1.Address,
		DecimalsA:        p.token0.Decimals,
		DecimalsB:        p.token1.Decimals,
		TokenAIcon:       Icon(p.token0.Symbol),
		TokenBIcon:       Icon(p.token1.Symbol),
		Liquidity:        cloneInt(liquidity),
		CurrentLiquidity: units.Float(liquidity),
		AmountA:          cloneInt(amount0),
		AmountB:          cloneInt(amount1),
		CurrentTokenA:    units.Format(amount0, p.token0.Decimals),
		CurrentTokenB:    units.Format(amount1, p.token1.Decimals),
		TickLower:        lower,
		TickUpper:        upper,
	}
}

// position formats record i of batch. kept is false for positions that
// are not full range.
func (f formatter) position(ctx context.Context, batch PositionBatch, i int) (pos model.Position, kept bool, err error) {
	key := batch.PoolKeys[i]
	p, err := f.resolvePair(ctx, key.Currency0, key.Currency1)
	if err != nil {
		return model.Position{}, false, err
	}
	fee, err := poolFee(key.Fee)
	if err != nil {
		return model.Position{}, false, err
	}
	spacing, err := dex.Int24FromBig(key.TickSpacing)
	if err != nil {
		return model.Position{}, false, fmt.Errorf("tick spacing: %w", err)
	}

	amount0, amount1 := p.order(batch.Amount0[i], batch.Amount1[i])
	fees0, fees1 := p.order(batch.Fees0[i], batch.Fees1[i])
	base := f.base(p, batch.IDs[i], batch.Liquidity[i], amount0, amount1, batch.PoolInfo[i])
	if !dex.IsFullRange(base.TickLower, base.TickUpper) {
		return model.Position{}, false, nil
	}
	base.ID = model.PositionKey(batch.IDs[i])
	base.FeeTier = FeeTierText(fee)

	return model.Position{
		PositionBase: base,
		PoolKey: model.PoolKey{
			Currency0:   p.token0.Address,
			Currency1:   p.token1.Address,
			Fee:         fee,
			DynamicFee:  fee == dex.DynamicFeeFlag,
			TickSpacing: spacing,
			Hooks:       key.Hooks,
		},
		FeesA:               cloneInt(fees0),
		FeesB:               cloneInt(fees1),
		UnclaimedFeesTokenA: units.Format(fees0, p.token0.Decimals),
		UnclaimedFeesTokenB: units.Format(fees1, p.token1.Decimals),
	}, true, nil
}

func (f formatter) staked(ctx context.Context, page StakedPage, i int) (model.StakedPosition, error) {
	p, err := f.resolvePair(ctx, page.Currency0[i], page.Currency1[i])
	if err != nil {
		return model.StakedPosition{}, err
	}
	amount0, amount1 := p.order(page.Amount0[i], page.Amount1[i])
	base := f.base(p, page.IDs[i], page.Liquidity[i], amount0, amount1, page.PoolInfo[i])
	base.ID = model.StakedKey(page.IDs[i])
	base.FeeTier = dynamicFeeLabel

	var stakedAt uint64
	if ts := page.StakedAt[i]; ts != nil && ts.IsUint64() {
		stakedAt = ts.Uint64()
	}
	return model.StakedPosition{
		PositionBase:       base,
		TimeStakedAt:       stakedAt,
		Penalty:            cloneInt(page.Penalty[i]),
		PenaltyForWithdraw: PenaltyText(page.Penalty[i]),
	}, nil
}

func poolFee(value *big.Int) (uint32, error) {
	if value == nil || value.Sign() < 0 || value.BitLen() > 24 {
		return 0, fmt.Errorf("invalid pool fee %v", value)
	}
	return uint32(value.Uint64()), nil
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
