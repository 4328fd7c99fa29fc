package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestResolverPrefersRegistryAndCaches(t *testing.T) {
	reg := testRegistry(t)
	other := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	calls := 0
	resolver := NewResolver(reg, func(ctx context.Context, addr common.Address) (Token, error) {
		calls++
		return Token{Decimals: 6}, nil
	})

	token, err := resolver.Resolve(context.Background(), addrA)
	if err != nil {
		t.Fatalf("resolve registered: %v", err)
	}
	if token.Symbol != "B0x" || calls != 0 {
		t.Fatalf("registered token should not be fetched, got %+v after %d calls", token, calls)
	}

	for i := 0; i < 2; i++ {
		token, err = resolver.Resolve(context.Background(), other)
		if err != nil {
			t.Fatalf("resolve unregistered: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one fetch, got %d", calls)
	}
	if token.Symbol != Placeholder(other) || token.Decimals != 6 || token.Address != other {
		t.Fatalf("unexpected token %+v", token)
	}
}

func TestResolverKeepsOnChainSymbol(t *testing.T) {
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	resolver := NewResolver(testRegistry(t), func(ctx context.Context, addr common.Address) (Token, error) {
		return Token{Symbol: "WETH", Decimals: 18}, nil
	})

	token, err := resolver.Resolve(context.Background(), weth)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if token.Symbol != "WETH" || token.Decimals != 18 || token.Address != weth {
		t.Fatalf("unexpected token %+v", token)
	}
}

func TestResolverFetchFailure(t *testing.T) {
	other := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	boom := errors.New("rpc down")
	resolver := NewResolver(testRegistry(t), func(ctx context.Context, addr common.Address) (Token, error) {
		return Token{}, boom
	})
	if _, err := resolver.Resolve(context.Background(), other); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}

	bare := NewResolver(nil, nil)
	if _, err := bare.Resolve(context.Background(), other); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
