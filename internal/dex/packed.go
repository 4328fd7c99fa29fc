package dex

import (
	"math/big"
)

// Bit offsets of the two ticks inside the packed pool-info word.
const (
	TickLowerOffset = 232
	TickUpperOffset = 208

	// FullRangeTick is the tick bound of a full-range position at the
	// pool's tick spacing.
	FullRangeTick int32 = 887220
)

const (
	tickMask    = 0xFFFFFF
	tickSignBit = 0x800000
	tickModulus = 0x1000000
)

// DecodeTickLower extracts the signed lower tick from packed pool info.
func DecodeTickLower(packed *big.Int) int32 {
	return decodeTick(packed, TickLowerOffset)
}

// DecodeTickUpper extracts the signed upper tick from packed pool info.
func DecodeTickUpper(packed *big.Int) int32 {
	return decodeTick(packed, TickUpperOffset)
}

func decodeTick(packed *big.Int, offset uint) int32 {
	if packed == nil {
		return 0
	}
	shifted := new(big.Int).Rsh(packed, offset)
	raw := int64(new(big.Int).And(shifted, big.NewInt(tickMask)).Uint64())
	if raw >= tickSignBit {
		raw -= tickModulus
	}
	return int32(raw)
}

// EncodeTicks packs a tick range into the pool-info layout. Bits outside
// the two tick fields are zero.
func EncodeTicks(lower, upper int32) *big.Int {
	out := new(big.Int).Lsh(big.NewInt(int64(uint32(lower)&tickMask)), TickLowerOffset)
	return out.Or(out, new(big.Int).Lsh(big.NewInt(int64(uint32(upper)&tickMask)), TickUpperOffset))
}

// IsFullRange reports whether the range equals the full-range sentinel.
func IsFullRange(lower, upper int32) bool {
	return lower == -FullRangeTick && upper == FullRangeTick
}
