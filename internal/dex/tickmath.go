package dex

import (
	"fmt"
	"math/big"
)

// Tick bounds of the V4 pool manager.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	q32        = new(big.Int).Lsh(big.NewInt(1), 32)
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// ratio multipliers for bits 1..19 of |tick|, Q128.128
	tickRatios = []*big.Int{
		mustHex("fff97272373d413259a46990580e213a"),
		mustHex("fff2e50f5f656932ef12357cf3c7fdcc"),
		mustHex("ffe5caca7e10e4e61c3624eaa0941cd0"),
		mustHex("ffcb9843d60f6159c9db58835c926644"),
		mustHex("ff973b41fa98c081472e6896dfb254c0"),
		mustHex("ff2ea16466c96a3843ec78b326b52861"),
		mustHex("fe5dee046a99a2a811c461f1969c3053"),
		mustHex("fcbe86c7900a88aedcffc83b479aa3a4"),
		mustHex("f987a7253ac413176f2b074cf7815e54"),
		mustHex("f3392b0822b70005940c7a398e4b70f3"),
		mustHex("e7159475a2c29b7443b29c7fa6e889d9"),
		mustHex("d097f3bdfd2022b8845ad8f792aa5825"),
		mustHex("a9f746462d870fdf8a65dc1f90e061e5"),
		mustHex("70d869a156d2a1b890bb3df62baf32f7"),
		mustHex("31be135f97d08fd981231505542fcfa6"),
		mustHex("9aa508b5b7a84e1c677de54f3e99bc9"),
		mustHex("5d6af8dedb81196699c329225ee604"),
		mustHex("2216e584f5fa1ea926041bedfe98"),
		mustHex("48a170391f7dc42444e8fa2"),
	}

	ratioOddTick = mustHex("fffcb933bd6fad37aa2d162d1a594001")
	ratioOne     = mustHex("100000000000000000000000000000000")
)

// SqrtRatioAtTick returns sqrt(1.0001^tick) as a Q64.96 value, matching
// the pool manager's TickMath.getSqrtPriceAtTick.
func SqrtRatioAtTick(tick int32) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("tick %d out of range", tick)
	}
	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	ratio := new(big.Int).Set(ratioOne)
	if absTick&0x1 != 0 {
		ratio.Set(ratioOddTick)
	}
	for i, mul := range tickRatios {
		if absTick&(int32(2)<<i) != 0 {
			ratio.Mul(ratio, mul)
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	out := new(big.Int).Rsh(ratio, 32)
	if new(big.Int).Mod(ratio, q32).Sign() != 0 {
		out.Add(out, big.NewInt(1))
	}
	return out, nil
}

func mustHex(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("invalid hex constant " + s)
	}
	return v
}
