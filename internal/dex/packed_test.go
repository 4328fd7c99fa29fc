package dex

import (
	"math/big"
	"testing"
)

func TestDecodeTicksRoundTrip(t *testing.T) {
	cases := [][2]int32{
		{-FullRangeTick, FullRangeTick},
		{-100, 100},
		{0, 0},
		{-1, 1},
		{-8388608, 8388607},
		{8388607, -8388608},
		{-887272, 887272},
		{123456, -654321},
	}
	for _, tc := range cases {
		packed := EncodeTicks(tc[0], tc[1])
		lower := DecodeTickLower(packed)
		upper := DecodeTickUpper(packed)
		if lower != tc[0] || upper != tc[1] {
			t.Fatalf("round trip mismatch for %v: got [%d, %d]", tc, lower, upper)
		}
	}
}

func TestDecodeTicksFullDomain(t *testing.T) {
	const step = 4099
	for tick := int32(-8388608); tick <= 8388607-step; tick += step {
		packed := EncodeTicks(tick, -tick-1)
		if got := DecodeTickLower(packed); got != tick {
			t.Fatalf("lower mismatch: want %d got %d", tick, got)
		}
		if got := DecodeTickUpper(packed); got != -tick-1 {
			t.Fatalf("upper mismatch: want %d got %d", -tick-1, got)
		}
	}
}

func TestDecodeTicksIgnoresLowBits(t *testing.T) {
	packed := EncodeTicks(-887220, 887220)
	lowBits := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), TickUpperOffset), big.NewInt(1))
	packed.Or(packed, lowBits)

	if got := DecodeTickLower(packed); got != -887220 {
		t.Fatalf("lower mismatch: %d", got)
	}
	if got := DecodeTickUpper(packed); got != 887220 {
		t.Fatalf("upper mismatch: %d", got)
	}
}

func TestDecodeTickKnownWord(t *testing.T) {
	// lower = -100 -> 0xFFFF9C, upper = 100 -> 0x000064
	packed, ok := new(big.Int).SetString("FFFF9C000064", 16)
	if !ok {
		t.Fatalf("bad fixture")
	}
	packed.Lsh(packed, TickUpperOffset)

	if got := DecodeTickLower(packed); got != -100 {
		t.Fatalf("lower mismatch: %d", got)
	}
	if got := DecodeTickUpper(packed); got != 100 {
		t.Fatalf("upper mismatch: %d", got)
	}
}

func TestIsFullRange(t *testing.T) {
	if !IsFullRange(-887220, 887220) {
		t.Fatalf("expected full range")
	}
	if IsFullRange(-887220, 887219) {
		t.Fatalf("[-887220, 887219] must not be full range")
	}
	if IsFullRange(-887219, 887220) {
		t.Fatalf("[-887219, 887220] must not be full range")
	}
}

// The position finder packs the lower tick above the upper tick:
// positions.js reads tickLower as (info >> 232) and tickUpper as
// (info >> 208).
func TestDecodeTickOriginalLayout(t *testing.T) {
	// -887220 -> 0xF2764C, 887220 -> 0x0D89B4
	packed := new(big.Int).Lsh(big.NewInt(0xF2764C), 232)
	packed.Or(packed, new(big.Int).Lsh(big.NewInt(0x0D89B4), 208))

	lower, upper := DecodeTickLower(packed), DecodeTickUpper(packed)
	if lower != -FullRangeTick || upper != FullRangeTick {
		t.Fatalf("expected [%d, %d], got [%d, %d]", -FullRangeTick, FullRangeTick, lower, upper)
	}
	if !IsFullRange(lower, upper) {
		t.Fatalf("full-range word must be recognized")
	}
	if IsFullRange(decodeTick(packed, 208), decodeTick(packed, 232)) {
		t.Fatalf("reading upper at 232 must not yield a full range")
	}
}
