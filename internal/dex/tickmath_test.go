package dex

import (
	"math/big"
	"testing"
)

func TestSqrtRatioAtTickBounds(t *testing.T) {
	cases := []struct {
		tick int32
		want string
	}{
		{tick: 0, want: "79228162514264337593543950336"},
		{tick: MinTick, want: "4295128739"},
		{tick: MaxTick, want: "1461446703485210103287273052203988822378723970342"},
	}
	for _, tc := range cases {
		got, err := SqrtRatioAtTick(tc.tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tc.tick, err)
		}
		if got.String() != tc.want {
			t.Fatalf("tick %d: want %s got %s", tc.tick, tc.want, got)
		}
	}
}

func TestSqrtRatioAtTickMonotonic(t *testing.T) {
	prev, err := SqrtRatioAtTick(-FullRangeTick)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	for _, tick := range []int32{-60000, -60, -1, 0, 1, 60, 60000, FullRangeTick} {
		cur, err := SqrtRatioAtTick(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if cur.Cmp(prev) <= 0 {
			t.Fatalf("ratio not increasing at tick %d", tick)
		}
		prev = cur
	}
}

func TestSqrtRatioAtTickOutOfRange(t *testing.T) {
	if _, err := SqrtRatioAtTick(MaxTick + 1); err == nil {
		t.Fatalf("expected range error")
	}
	if _, err := SqrtRatioAtTick(MinTick - 1); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestPoolIDDeterministic(t *testing.T) {
	key := PoolKey{
		Currency0:   addrFromByte(0xaa),
		Currency1:   addrFromByte(0xbb),
		Fee:         big.NewInt(DynamicFeeFlag),
		TickSpacing: big.NewInt(60),
		Hooks:       addrFromByte(0xcc),
	}
	first, err := PoolID(key)
	if err != nil {
		t.Fatalf("pool id: %v", err)
	}
	second, err := PoolID(key)
	if err != nil {
		t.Fatalf("pool id: %v", err)
	}
	if first != second {
		t.Fatalf("pool id not deterministic")
	}

	key.TickSpacing = big.NewInt(10)
	other, err := PoolID(key)
	if err != nil {
		t.Fatalf("pool id: %v", err)
	}
	if other == first {
		t.Fatalf("pool id must depend on tick spacing")
	}
}
