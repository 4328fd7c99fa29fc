package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const poolKeyComponentsJSON = `[
        {"internalType": "address", "name": "currency0", "type": "address"},
        {"internalType": "address", "name": "currency1", "type": "address"},
        {"internalType": "uint24", "name": "fee", "type": "uint24"},
        {"internalType": "int24", "name": "tickSpacing", "type": "int24"},
        {"internalType": "address", "name": "hooks", "type": "address"}
      ]`

const positionOutputsJSON = `[
      {"internalType": "uint256[]", "name": "ownedTokens", "type": "uint256[]"},
      {"internalType": "uint256[]", "name": "amountTokenA", "type": "uint256[]"},
      {"internalType": "uint256[]", "name": "amountTokenB", "type": "uint256[]"},
      {"internalType": "uint128[]", "name": "positionLiquidity", "type": "uint128[]"},
      {"internalType": "int128[]", "name": "feesOwedTokenA", "type": "int128[]"},
      {"internalType": "int128[]", "name": "feesOwedTokenB", "type": "int128[]"},
      {"internalType": "struct PoolKey[]", "name": "poolKeyz", "type": "tuple[]", "components": ` + poolKeyComponentsJSON + `},
      {"internalType": "uint256[]", "name": "poolInfo", "type": "uint256[]"}
    ]`

const positionFinderABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "user", "type": "address"},
      {"internalType": "uint256", "name": "startId", "type": "uint256"},
      {"internalType": "uint256", "name": "endId", "type": "uint256"},
      {"internalType": "address", "name": "Token0", "type": "address"},
      {"internalType": "address", "name": "Token1", "type": "address"},
      {"internalType": "address", "name": "HookAddress", "type": "address"},
      {"internalType": "uint256", "name": "minTokenA", "type": "uint256"}
    ],
    "name": "findUserTokenIdswithMinimum",
    "outputs": ` + positionOutputsJSON + `,
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "user", "type": "address"},
      {"internalType": "uint256[]", "name": "tokenIds", "type": "uint256[]"},
      {"internalType": "address", "name": "Token0", "type": "address"},
      {"internalType": "address", "name": "Token1", "type": "address"},
      {"internalType": "address", "name": "HookAddress", "type": "address"},
      {"internalType": "uint256", "name": "minTokenA", "type": "uint256"}
    ],
    "name": "findUserTokenIdswithMinimumIndividual",
    "outputs": ` + positionOutputsJSON + `,
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "user", "type": "address"},
      {"internalType": "address", "name": "Token0", "type": "address"},
      {"internalType": "address", "name": "Token1", "type": "address"},
      {"internalType": "uint256", "name": "minAmount0", "type": "uint256"},
      {"internalType": "uint256", "name": "startIndex", "type": "uint256"},
      {"internalType": "uint256", "name": "count", "type": "uint256"},
      {"internalType": "address", "name": "HookAddress", "type": "address"}
    ],
    "name": "getIDSofStakedTokensForUserwithMinimum",
    "outputs": [
      {"internalType": "uint256[]", "name": "ids", "type": "uint256[]"},
      {"internalType": "uint256[]", "name": "LiquidityTokenA", "type": "uint256[]"},
      {"internalType": "uint256[]", "name": "LiquidityTokenB", "type": "uint256[]"},
      {"internalType": "uint128[]", "name": "positionLiquidity", "type": "uint128[]"},
      {"internalType": "uint256[]", "name": "timeStakedAt", "type": "uint256[]"},
      {"internalType": "uint256[]", "name": "multiplierPenalty", "type": "uint256[]"},
      {"internalType": "address[]", "name": "currency0", "type": "address[]"},
      {"internalType": "address[]", "name": "currency1", "type": "address[]"},
      {"internalType": "uint256[]", "name": "poolInfo", "type": "uint256[]"},
      {"internalType": "int128", "name": "startCountAt", "type": "int128"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getMaxUniswapIDPossible",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "address", "name": "user", "type": "address"}],
    "name": "getMaxStakedIDforUser",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const positionManagerABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "id", "type": "uint256"}
    ],
    "name": "Transfer",
    "type": "event"
  },
  {
    "inputs": [
      {"internalType": "bytes", "name": "unlockData", "type": "bytes"},
      {"internalType": "uint256", "name": "deadline", "type": "uint256"}
    ],
    "name": "modifyLiquidities",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "tokenId", "type": "uint256"}],
    "name": "getPositionLiquidity",
    "outputs": [{"internalType": "uint128", "name": "liquidity", "type": "uint128"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "id", "type": "uint256"}],
    "name": "ownerOf",
    "outputs": [{"internalType": "address", "name": "owner", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const liquidityHelperABIJSON = `[
  {
    "inputs": [
      {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"internalType": "uint160", "name": "sqrtPriceAX96", "type": "uint160"},
      {"internalType": "uint160", "name": "sqrtPriceBX96", "type": "uint160"},
      {"internalType": "uint256", "name": "amount0", "type": "uint256"},
      {"internalType": "uint256", "name": "amount1", "type": "uint256"}
    ],
    "name": "getLiquidityForAmounts",
    "outputs": [{"internalType": "uint128", "name": "liquidity", "type": "uint128"}],
    "stateMutability": "pure",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "token", "type": "address"},
      {"internalType": "address", "name": "token2", "type": "address"},
      {"internalType": "uint128", "name": "percentagedivby10000", "type": "uint128"},
      {"internalType": "uint256", "name": "tokenID", "type": "uint256"},
      {"internalType": "address", "name": "HookAddress", "type": "address"}
    ],
    "name": "getAmount0andAmount1forLiquidityPercentage",
    "outputs": [
      {"internalType": "uint256", "name": "amount0", "type": "uint256"},
      {"internalType": "uint256", "name": "amount1", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const stateViewABIJSON = `[
  {
    "inputs": [{"internalType": "PoolId", "name": "poolId", "type": "bytes32"}],
    "name": "getSlot0",
    "outputs": [
      {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"internalType": "int24", "name": "tick", "type": "int24"},
      {"internalType": "uint24", "name": "protocolFee", "type": "uint24"},
      {"internalType": "uint24", "name": "lpFee", "type": "uint24"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const permit2ABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "user", "type": "address"},
      {"internalType": "address", "name": "token", "type": "address"},
      {"internalType": "address", "name": "spender", "type": "address"}
    ],
    "name": "allowance",
    "outputs": [
      {"internalType": "uint160", "name": "amount", "type": "uint160"},
      {"internalType": "uint48", "name": "expiration", "type": "uint48"},
      {"internalType": "uint48", "name": "nonce", "type": "uint48"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "token", "type": "address"},
      {"internalType": "address", "name": "spender", "type": "address"},
      {"internalType": "uint160", "name": "amount", "type": "uint160"},
      {"internalType": "uint48", "name": "expiration", "type": "uint48"}
    ],
    "name": "approve",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

type lazyABI struct {
	raw  string
	once sync.Once
	abi  abi.ABI
	err  error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.abi, l.err = abi.JSON(strings.NewReader(l.raw))
	})
	return l.abi, l.err
}

var (
	positionFinderABI  = &lazyABI{raw: positionFinderABIJSON}
	positionManagerABI = &lazyABI{raw: positionManagerABIJSON}
	liquidityHelperABI = &lazyABI{raw: liquidityHelperABIJSON}
	stateViewABI       = &lazyABI{raw: stateViewABIJSON}
	permit2ABI         = &lazyABI{raw: permit2ABIJSON}
)

// PositionFinderABI returns the parsed position-finder ABI.
func PositionFinderABI() (abi.ABI, error) { return positionFinderABI.get() }

// PositionManagerABI returns the parsed V4 position manager ABI.
func PositionManagerABI() (abi.ABI, error) { return positionManagerABI.get() }

// LiquidityHelperABI returns the parsed liquidity helper ABI.
func LiquidityHelperABI() (abi.ABI, error) { return liquidityHelperABI.get() }

// StateViewABI returns the parsed V4 StateView ABI.
func StateViewABI() (abi.ABI, error) { return stateViewABI.get() }

// Permit2ABI returns the parsed Permit2 allowance ABI.
func Permit2ABI() (abi.ABI, error) { return permit2ABI.get() }
