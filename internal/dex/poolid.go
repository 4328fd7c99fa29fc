package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// DynamicFeeFlag marks a pool whose LP fee is set by its hook.
const DynamicFeeFlag = 0x800000

var poolKeyArgs = abi.Arguments{
	{Type: addressType},
	{Type: addressType},
	{Type: uint24Type},
	{Type: int24Type},
	{Type: addressType},
}

// PoolID is keccak256(abi.encode(PoolKey)), the id used by the pool
// manager and StateView.
func PoolID(key PoolKey) ([32]byte, error) {
	fee := key.Fee
	if fee == nil {
		fee = new(big.Int)
	}
	spacing := key.TickSpacing
	if spacing == nil {
		spacing = new(big.Int)
	}
	encoded, err := poolKeyArgs.Pack(key.Currency0, key.Currency1, fee, spacing, key.Hooks)
	if err != nil {
		return [32]byte{}, fmt.Errorf("encode pool key: %w", err)
	}
	var id [32]byte
	copy(id[:], crypto.Keccak256(encoded))
	return id, nil
}
