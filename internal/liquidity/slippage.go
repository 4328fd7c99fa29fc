package liquidity

import (
	"fmt"
	"math"
	"math/big"
)

const bpsDenominator = 10000

// SlippageBps converts a tolerance in percent to basis points, rounding
// to the nearest point.
func SlippageBps(percent float64) (int64, error) {
	if math.IsNaN(percent) || percent < 0 || percent > 100 {
		return 0, fmt.Errorf("slippage %v%% out of range", percent)
	}
	return int64(math.Round(percent * 100)), nil
}

// MinOut is floor(amount * (10000 - bps) / 10000).
func MinOut(amount *big.Int, bps int64) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, big.NewInt(bpsDenominator-bps))
	return out.Quo(out, big.NewInt(bpsDenominator))
}

// PercentToBps converts a whole removal percentage (0-100) to basis points.
func PercentToBps(percent int) (int64, error) {
	if percent <= 0 || percent > 100 {
		return 0, fmt.Errorf("percentage %d out of range", percent)
	}
	return int64(percent) * bpsDenominator / 100, nil
}

// RemovalLiquidity is the liquidity to remove for bps of current. Below
// 100% one extra basis point is removed to avoid rounding dust.
func RemovalLiquidity(current *big.Int, bps int64) *big.Int {
	if current == nil {
		return new(big.Int)
	}
	if bps >= bpsDenominator {
		return new(big.Int).Set(current)
	}
	out := new(big.Int).Mul(current, big.NewInt(bps+1))
	return out.Quo(out, big.NewInt(bpsDenominator))
}
