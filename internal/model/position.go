package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Cache key prefixes. The two sets never overlap.
const (
	PositionKeyPrefix = "position_"
	StakedKeyPrefix   = "stake_position_"
)

// PoolKey identifies a V4 pool. Currency0 sorts before Currency1.
type PoolKey struct {
	Currency0   common.Address `json:"currency0"`
	Currency1   common.Address `json:"currency1"`
	Fee         uint32         `json:"fee"`
	DynamicFee  bool           `json:"dynamic_fee"`
	TickSpacing int32          `json:"tick_spacing"`
	Hooks       common.Address `json:"hooks"`
}

// PositionBase holds the fields shared by regular and staked positions.
// Amounts are base units; the string fields are their display form.
type PositionBase struct {
	ID      string   `json:"id"`
	TokenID *big.Int `json:"token_id"`
	Pool    string   `json:"pool"`
	FeeTier string   `json:"fee_tier"`

	TokenA        string         `json:"token_a"`
	TokenB        string         `json:"token_b"`
	TokenAAddress common.Address `json:"token_a_address"`
	TokenBAddress common.Address `json:"token_b_address"`
	DecimalsA     uint8          `json:"decimals_a"`
	DecimalsB     uint8          `json:"decimals_b"`
	TokenAIcon    string         `json:"token_a_icon"`
	TokenBIcon    string         `json:"token_b_icon"`

	Liquidity        *big.Int `json:"liquidity"`
	CurrentLiquidity float64  `json:"current_liquidity"`
	AmountA          *big.Int `json:"amount_a"`
	AmountB          *big.Int `json:"amount_b"`
	CurrentTokenA    string   `json:"current_token_a"`
	CurrentTokenB    string   `json:"current_token_b"`

	TickLower int32 `json:"tick_lower"`
	TickUpper int32 `json:"tick_upper"`
}

// Position is a regular, NFT-owned liquidity position.
type Position struct {
	PositionBase
	PoolKey             PoolKey  `json:"pool_key"`
	FeesA               *big.Int `json:"fees_a"`
	FeesB               *big.Int `json:"fees_b"`
	UnclaimedFeesTokenA string   `json:"unclaimed_fees_token_a"`
	UnclaimedFeesTokenB string   `json:"unclaimed_fees_token_b"`
}

// StakedPosition is a position held by the staking contract for the owner.
type StakedPosition struct {
	PositionBase
	TimeStakedAt       uint64   `json:"time_staked_at"`
	Penalty            *big.Int `json:"penalty"`
	PenaltyForWithdraw string   `json:"penalty_for_withdraw"`
	APY                string   `json:"apy"`
}

// PositionKey is the cache key of a regular position.
func PositionKey(tokenID *big.Int) string {
	return PositionKeyPrefix + tokenID.String()
}

// StakedKey is the cache key of a staked position.
func StakedKey(tokenID *big.Int) string {
	return StakedKeyPrefix + tokenID.String()
}

// ParseKey extracts the on-chain token id from a cache key.
func ParseKey(key string) (tokenID *big.Int, staked bool, err error) {
	var raw string
	switch {
	case strings.HasPrefix(key, StakedKeyPrefix):
		raw, staked = strings.TrimPrefix(key, StakedKeyPrefix), true
	case strings.HasPrefix(key, PositionKeyPrefix):
		raw = strings.TrimPrefix(key, PositionKeyPrefix)
	default:
		return nil, false, fmt.Errorf("unknown key prefix: %q", key)
	}
	id, ok := new(big.Int).SetString(raw, 10)
	if !ok || id.Sign() < 0 {
		return nil, false, fmt.Errorf("invalid token id in key %q", key)
	}
	return id, staked, nil
}
