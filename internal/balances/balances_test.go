package balances

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/dex"
	"positionScope/internal/registry"
)

var (
	tokenB0x  = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	tokenBTC  = common.HexToAddress("0x00000000000000000000000000000000000000b7")
	tokenDown = common.HexToAddress("0x00000000000000000000000000000000000000dd")
	wallet    = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

type fakeReader struct {
	balances map[common.Address]*big.Int
	native   *big.Int
}

func (f *fakeReader) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	bal, ok := f.balances[*msg.To]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	parsed, err := dex.ERC20ABI()
	if err != nil {
		return nil, err
	}
	return parsed.Methods["balanceOf"].Outputs.Pack(bal)
}

func (f *fakeReader) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return f.native, nil
}

func TestRefreshFormatsByDecimals(t *testing.T) {
	reg, err := registry.New([]registry.Token{
		{Symbol: "B0x", Address: tokenB0x, Decimals: 18},
		{Symbol: "0xBTC", Address: tokenBTC, Decimals: 8},
		{Symbol: "ETH", Address: common.Address{}, Decimals: 18},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	fiveB0x, _ := new(big.Int).SetString("5000000000000000000", 10)
	halfEth, _ := new(big.Int).SetString("500000000000000000", 10)
	reader := &fakeReader{
		balances: map[common.Address]*big.Int{tokenB0x: fiveB0x, tokenBTC: big.NewInt(150_000_000)},
		native:   halfEth,
	}
	refresher, err := NewRefresher(reader, reg, 0, 0, zap.NewNop())
	if err != nil {
		t.Fatalf("refresher: %v", err)
	}

	if err := refresher.Refresh(context.Background(), wallet); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	owner, got := refresher.Latest()
	if owner != wallet {
		t.Fatalf("owner = %s", owner.Hex())
	}
	want := map[string]string{"B0x": "5.0", "0xBTC": "1.5", "ETH": "0.5"}
	if len(got) != len(want) {
		t.Fatalf("balances = %+v", got)
	}
	for _, bal := range got {
		if want[bal.Symbol] != bal.Display {
			t.Fatalf("%s display = %q, want %q", bal.Symbol, bal.Display, want[bal.Symbol])
		}
	}
}

func TestRefreshKeepsPartialResults(t *testing.T) {
	reg, err := registry.New([]registry.Token{
		{Symbol: "B0x", Address: tokenB0x, Decimals: 18},
		{Symbol: "DOWN", Address: tokenDown, Decimals: 18},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	reader := &fakeReader{balances: map[common.Address]*big.Int{tokenB0x: big.NewInt(1)}}
	refresher, err := NewRefresher(reader, reg, 1, 1, zap.NewNop())
	if err != nil {
		t.Fatalf("refresher: %v", err)
	}

	if err := refresher.Refresh(context.Background(), wallet); err == nil {
		t.Fatalf("expected error for failing token")
	}
	_, got := refresher.Latest()
	if len(got) != 1 || got[0].Symbol != "B0x" {
		t.Fatalf("balances = %+v", got)
	}
}
