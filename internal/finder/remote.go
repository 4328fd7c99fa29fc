package finder

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"positionScope/internal/dex"
)

// PositionBatch is the parallel-array result of the regular position
// queries. Entry i of every slice describes IDs[i].
type PositionBatch struct {
	IDs       []*big.Int
	Amount0   []*big.Int
	Amount1   []*big.Int
	Liquidity []*big.Int
	Fees0     []*big.Int
	Fees1     []*big.Int
	PoolKeys  []dex.PoolKey
	PoolInfo  []*big.Int
}

// Len is the number of records in the batch.
func (b PositionBatch) Len() int {
	return len(b.IDs)
}

// StakedPage is one page of staked positions. NextCursor is negative when
// the page did not report a resume point.
type StakedPage struct {
	IDs        []*big.Int
	Amount0    []*big.Int
	Amount1    []*big.Int
	Liquidity  []*big.Int
	StakedAt   []*big.Int
	Penalty    []*big.Int
	Currency0  []common.Address
	Currency1  []common.Address
	PoolInfo   []*big.Int
	NextCursor *big.Int
}

// Len is the number of records in the page.
func (p StakedPage) Len() int {
	return len(p.IDs)
}

// PairFilter selects the pool the finder contract reports on.
type PairFilter struct {
	Token0    common.Address
	Token1    common.Address
	Hook      common.Address
	MinAmount *big.Int
}

// Remote is the read surface of the position-finder contract.
type Remote interface {
	FindUserTokenIDsWithMinimum(ctx context.Context, user common.Address, startID, endID *big.Int, filter PairFilter) (PositionBatch, error)
	FindUserTokenIDsIndividual(ctx context.Context, user common.Address, ids []*big.Int, filter PairFilter) (PositionBatch, error)
	StakedTokenIDsWithMinimum(ctx context.Context, user common.Address, filter PairFilter, startIndex, count *big.Int) (StakedPage, error)
	MaxTokenIDPossible(ctx context.Context) (*big.Int, error)
	MaxStakedIDForUser(ctx context.Context, user common.Address) (*big.Int, error)
}

// OwnerIndex maps every position NFT id to its current owner.
type OwnerIndex interface {
	Owners(ctx context.Context) (map[string]common.Address, error)
}

// LogSearch reports whether an ownership log scan is in progress.
type LogSearch interface {
	Searching() bool
}
