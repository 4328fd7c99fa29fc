package liquidity

import (
	"math"
	"math/big"
	"testing"
)

func TestSlippageBps(t *testing.T) {
	cases := []struct {
		percent float64
		want    int64
	}{
		{0, 0},
		{0.5, 50},
		{1.0, 100},
		{2.5, 250},
		{100, 10000},
	}
	for _, tc := range cases {
		got, err := SlippageBps(tc.percent)
		if err != nil {
			t.Fatalf("SlippageBps(%v): %v", tc.percent, err)
		}
		if got != tc.want {
			t.Fatalf("SlippageBps(%v) = %d, want %d", tc.percent, got, tc.want)
		}
	}
	for _, bad := range []float64{-0.1, 100.5, math.NaN()} {
		if _, err := SlippageBps(bad); err == nil {
			t.Fatalf("expected error for %v", bad)
		}
	}
}

func TestMinOut(t *testing.T) {
	if got := MinOut(big.NewInt(1_000_000), 100); got.Int64() != 990_000 {
		t.Fatalf("MinOut = %s, want 990000", got)
	}
	if got := MinOut(big.NewInt(999), 100); got.Int64() != 989 {
		t.Fatalf("MinOut floors, got %s", got)
	}
	if got := MinOut(big.NewInt(-5), 100); got.Sign() != 0 {
		t.Fatalf("negative amount should give zero, got %s", got)
	}
	if got := MinOut(nil, 100); got.Sign() != 0 {
		t.Fatalf("nil amount should give zero, got %s", got)
	}
}

func TestPercentToBps(t *testing.T) {
	got, err := PercentToBps(25)
	if err != nil || got != 2500 {
		t.Fatalf("PercentToBps(25) = %d, %v", got, err)
	}
	for _, bad := range []int{0, -1, 101} {
		if _, err := PercentToBps(bad); err == nil {
			t.Fatalf("expected error for %d", bad)
		}
	}
}

func TestRemovalLiquidity(t *testing.T) {
	current := big.NewInt(1_000_000)
	if got := RemovalLiquidity(current, 5000); got.Int64() != 500_100 {
		t.Fatalf("half removal = %s, want 500100", got)
	}
	full := RemovalLiquidity(current, 10000)
	if full.Cmp(current) != 0 {
		t.Fatalf("full removal = %s, want %s", full, current)
	}
	full.SetInt64(0)
	if current.Int64() != 1_000_000 {
		t.Fatalf("full removal aliased the input")
	}
}
