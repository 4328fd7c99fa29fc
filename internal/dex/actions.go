package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// V4 position manager action codes.
const (
	ActionIncreaseLiquidity byte = 0x00
	ActionDecreaseLiquidity byte = 0x01
	ActionSettlePair        byte = 0x0d
	ActionTakePair          byte = 0x11
	ActionCloseCurrency     byte = 0x12
)

var (
	uint256Type, _  = abi.NewType("uint256", "", nil)
	int128Type, _   = abi.NewType("int128", "", nil)
	addressType, _  = abi.NewType("address", "", nil)
	bytesType, _    = abi.NewType("bytes", "", nil)
	bytesArrType, _ = abi.NewType("bytes[]", "", nil)
	uint24Type, _   = abi.NewType("uint24", "", nil)
	int24Type, _    = abi.NewType("int24", "", nil)
)

var (
	modifyLiquidityArgs = abi.Arguments{
		{Type: uint256Type},
		{Type: int128Type},
		{Type: uint256Type},
		{Type: uint256Type},
		{Type: bytesType},
	}

	pairArgs          = abi.Arguments{{Type: addressType}, {Type: addressType}}
	takePairArgs      = abi.Arguments{{Type: addressType}, {Type: addressType}, {Type: addressType}}
	closeCurrencyArgs = abi.Arguments{{Type: addressType}}
	unlockDataArgs    = abi.Arguments{{Type: bytesType}, {Type: bytesArrType}}
)

// Plan is an ordered list of position manager actions with their params.
type Plan struct {
	Actions []byte
	Params  [][]byte
}

// Add appends one action.
func (p *Plan) Add(action byte, param []byte) {
	p.Actions = append(p.Actions, action)
	p.Params = append(p.Params, param)
}

// Encode returns abi.encode(bytes actions, bytes[] params), the
// modifyLiquidities unlock data.
func (p Plan) Encode() ([]byte, error) {
	if len(p.Actions) != len(p.Params) {
		return nil, fmt.Errorf("actions/params length mismatch: %d != %d", len(p.Actions), len(p.Params))
	}
	return unlockDataArgs.Pack(p.Actions, p.Params)
}

// DecodePlan parses unlock data back into a Plan.
func DecodePlan(data []byte) (Plan, error) {
	values, err := unlockDataArgs.Unpack(data)
	if err != nil {
		return Plan{}, fmt.Errorf("unpack unlock data: %w", err)
	}
	actions, ok := values[0].([]byte)
	if !ok {
		return Plan{}, fmt.Errorf("actions type %T", values[0])
	}
	params, ok := values[1].([][]byte)
	if !ok {
		return Plan{}, fmt.Errorf("params type %T", values[1])
	}
	return Plan{Actions: actions, Params: params}, nil
}

// EncodeModifyLiquidity encodes INCREASE_LIQUIDITY or DECREASE_LIQUIDITY
// params: (tokenId, liquidity, amount0 bound, amount1 bound, hookData).
func EncodeModifyLiquidity(tokenID, liquidity, amount0, amount1 *big.Int) ([]byte, error) {
	return modifyLiquidityArgs.Pack(tokenID, liquidity, amount0, amount1, []byte{})
}

// EncodeSettlePair encodes SETTLE_PAIR params.
func EncodeSettlePair(currency0, currency1 common.Address) ([]byte, error) {
	return pairArgs.Pack(currency0, currency1)
}

// EncodeTakePair encodes TAKE_PAIR params.
func EncodeTakePair(currency0, currency1, recipient common.Address) ([]byte, error) {
	return takePairArgs.Pack(currency0, currency1, recipient)
}

// EncodeCloseCurrency encodes CLOSE_CURRENCY params.
func EncodeCloseCurrency(currency common.Address) ([]byte, error) {
	return closeCurrencyArgs.Pack(currency)
}

// DecodeModifyLiquidity parses params produced by EncodeModifyLiquidity.
func DecodeModifyLiquidity(data []byte) (tokenID, liquidity, amount0, amount1 *big.Int, err error) {
	values, err := modifyLiquidityArgs.Unpack(data)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("unpack modify liquidity: %w", err)
	}
	out := make([]*big.Int, 4)
	for i := range out {
		if out[i], err = asBigInt(values[i]); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	return out[0], out[1], out[2], out[3], nil
}
