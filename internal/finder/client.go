package finder

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/dex"
)

// Client is the chain-backed Remote.
type Client struct {
	caller   dex.ContractCaller
	contract common.Address
	parsed   abi.ABI
	logger   *zap.Logger
}

// NewClient binds the position-finder contract at address.
func NewClient(caller dex.ContractCaller, address common.Address, logger *zap.Logger) (*Client, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := dex.PositionFinderABI()
	if err != nil {
		return nil, fmt.Errorf("position finder abi: %w", err)
	}
	return &Client{caller: caller, contract: address, parsed: parsed, logger: logger}, nil
}

func (c *Client) FindUserTokenIDsWithMinimum(ctx context.Context, user common.Address, startID, endID *big.Int, filter PairFilter) (PositionBatch, error) {
	values, err := dex.Call(ctx, c.caller, c.contract, c.parsed, "findUserTokenIdswithMinimum",
		user, startID, endID, filter.Token0, filter.Token1, filter.Hook, minAmount(filter))
	if err != nil {
		return PositionBatch{}, err
	}
	return decodePositionBatch(values)
}

func (c *Client) FindUserTokenIDsIndividual(ctx context.Context, user common.Address, ids []*big.Int, filter PairFilter) (PositionBatch, error) {
	values, err := dex.Call(ctx, c.caller, c.contract, c.parsed, "findUserTokenIdswithMinimumIndividual",
		user, ids, filter.Token0, filter.Token1, filter.Hook, minAmount(filter))
	if err != nil {
		return PositionBatch{}, err
	}
	c.logger.Debug("individual lookup", zap.Int("requested", len(ids)), zap.Int("values", len(values)))
	return decodePositionBatch(values)
}

func (c *Client) StakedTokenIDsWithMinimum(ctx context.Context, user common.Address, filter PairFilter, startIndex, count *big.Int) (StakedPage, error) {
	values, err := dex.Call(ctx, c.caller, c.contract, c.parsed, "getIDSofStakedTokensForUserwithMinimum",
		user, filter.Token0, filter.Token1, minAmount(filter), startIndex, count, filter.Hook)
	if err != nil {
		return StakedPage{}, err
	}
	return decodeStakedPage(values)
}

func (c *Client) MaxTokenIDPossible(ctx context.Context) (*big.Int, error) {
	values, err := dex.Call(ctx, c.caller, c.contract, c.parsed, "getMaxUniswapIDPossible")
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("getMaxUniswapIDPossible: unexpected output count %d", len(values))
	}
	return dex.AsBigInt(values[0])
}

func (c *Client) MaxStakedIDForUser(ctx context.Context, user common.Address) (*big.Int, error) {
	values, err := dex.Call(ctx, c.caller, c.contract, c.parsed, "getMaxStakedIDforUser", user)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("getMaxStakedIDforUser: unexpected output count %d", len(values))
	}
	return dex.AsBigInt(values[0])
}

func minAmount(filter PairFilter) *big.Int {
	if filter.MinAmount == nil {
		return big.NewInt(0)
	}
	return filter.MinAmount
}

func decodePositionBatch(values []interface{}) (PositionBatch, error) {
	if len(values) != 8 {
		return PositionBatch{}, fmt.Errorf("position batch: unexpected output count %d", len(values))
	}
	var (
		batch PositionBatch
		err   error
	)
	ints := []*[]*big.Int{&batch.IDs, &batch.Amount0, &batch.Amount1, &batch.Liquidity, &batch.Fees0, &batch.Fees1}
	for i, dst := range ints {
		if *dst, err = dex.AsBigInts(values[i]); err != nil {
			return PositionBatch{}, fmt.Errorf("position batch output %d: %w", i, err)
		}
	}
	if batch.PoolKeys, err = dex.AsPoolKeys(values[6]); err != nil {
		return PositionBatch{}, err
	}
	if batch.PoolInfo, err = dex.AsBigInts(values[7]); err != nil {
		return PositionBatch{}, fmt.Errorf("position batch output 7: %w", err)
	}
	return batch, checkBatchShape(batch)
}

func checkBatchShape(batch PositionBatch) error {
	n := len(batch.IDs)
	for _, l := range []int{len(batch.Amount0), len(batch.Amount1), len(batch.Liquidity), len(batch.Fees0), len(batch.Fees1), len(batch.PoolKeys), len(batch.PoolInfo)} {
		if l != n {
			return fmt.Errorf("position batch: ragged arrays (%d ids, %d values)", n, l)
		}
	}
	return nil
}

func decodeStakedPage(values []interface{}) (StakedPage, error) {
	if len(values) != 10 {
		return StakedPage{}, fmt.Errorf("staked page: unexpected output count %d", len(values))
	}
	var (
		page StakedPage
		err  error
	)
	ints := []*[]*big.Int{&page.IDs, &page.Amount0, &page.Amount1, &page.Liquidity, &page.StakedAt, &page.Penalty}
	for i, dst := range ints {
		if *dst, err = dex.AsBigInts(values[i]); err != nil {
			return StakedPage{}, fmt.Errorf("staked page output %d: %w", i, err)
		}
	}
	if page.Currency0, err = dex.AsAddresses(values[6]); err != nil {
		return StakedPage{}, fmt.Errorf("staked page output 6: %w", err)
	}
	if page.Currency1, err = dex.AsAddresses(values[7]); err != nil {
		return StakedPage{}, fmt.Errorf("staked page output 7: %w", err)
	}
	if page.PoolInfo, err = dex.AsBigInts(values[8]); err != nil {
		return StakedPage{}, fmt.Errorf("staked page output 8: %w", err)
	}
	if page.NextCursor, err = dex.AsBigInt(values[9]); err != nil {
		return StakedPage{}, fmt.Errorf("staked page cursor: %w", err)
	}

	n := len(page.IDs)
	for _, l := range []int{len(page.Amount0), len(page.Amount1), len(page.Liquidity), len(page.StakedAt), len(page.Penalty), len(page.Currency0), len(page.Currency1), len(page.PoolInfo)} {
		if l != n {
			return StakedPage{}, fmt.Errorf("staked page: ragged arrays (%d ids, %d values)", n, l)
		}
	}
	return page, nil
}
