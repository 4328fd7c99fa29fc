package finder

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"positionScope/internal/indexer"
	"positionScope/internal/model"
	"positionScope/internal/registry"
	"positionScope/internal/retry"
)

// ErrPageFailed marks a staked page that failed after retries. The staked
// scan stops there; pages read before it are kept.
var ErrPageFailed = errors.New("staked page failed")

// Config holds the operational constants of a reconciliation read.
type Config struct {
	// Pair is the configured token pair, in configuration order.
	Pair             [2]common.Address
	Hook             common.Address
	MinStaking       *big.Int
	MinHoldings      *big.Int
	PageSize         uint64
	BatchSize        int
	BatchConcurrency int
	PollInterval     time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.PageSize == 0 {
		c.PageSize = 1000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	return c
}

// Cursors are the resume points of the two scans.
type Cursors struct {
	NextRegularStartID uint64 `json:"next_regular_start_id"`
	NextStakedStartID  uint64 `json:"next_staked_start_id"`
}

// Result is everything one read produced.
type Result struct {
	Positions []model.Position
	Staked    []model.StakedPosition
	Cursors   Cursors

	// StakedTotalA and StakedTotalB sum the raw staked amounts of every
	// page read, in configuration pair order.
	StakedTotalA *big.Int
	StakedTotalB *big.Int

	StakedErr     error
	FailedBatches int
	RecordErrors  []model.RecordError
}

// Reader scans the position-finder contract for one owner.
type Reader struct {
	remote Remote
	owners OwnerIndex
	search LogSearch
	format formatter
	cfg    Config
	logger *zap.Logger
}

// NewReader builds a reader. owners and search may be nil, in which case
// regular positions are found by scanning id ranges.
func NewReader(remote Remote, owners OwnerIndex, search LogSearch, resolver *registry.Resolver, cfg Config, logger *zap.Logger) (*Reader, error) {
	if remote == nil {
		return nil, fmt.Errorf("finder remote is nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("token resolver is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		remote: remote,
		owners: owners,
		search: search,
		format: formatter{resolver: resolver},
		cfg:    cfg.withDefaults(),
		logger: logger,
	}, nil
}

// Read runs the staked scan, then the regular scan. Remote failures are
// contained per page or batch; only context cancellation is returned.
func (r *Reader) Read(ctx context.Context, owner common.Address, cursors Cursors) (Result, error) {
	res := Result{
		Cursors:      cursors,
		StakedTotalA: new(big.Int),
		StakedTotalB: new(big.Int),
	}

	if err := r.readStaked(ctx, owner, &res); err != nil {
		return Result{}, err
	}
	if err := r.readRegular(ctx, owner, &res); err != nil {
		return Result{}, err
	}

	r.logger.Info("positions read",
		zap.String("owner", owner.Hex()),
		zap.Int("positions", len(res.Positions)),
		zap.Int("staked", len(res.Staked)),
		zap.Int("failed_batches", res.FailedBatches),
		zap.Int("record_errors", len(res.RecordErrors)),
	)
	return res, nil
}

func (r *Reader) stakedFilter() PairFilter {
	return PairFilter{
		Token0:    r.cfg.Pair[0],
		Token1:    r.cfg.Pair[1],
		Hook:      r.cfg.Hook,
		MinAmount: r.cfg.MinStaking,
	}
}

func (r *Reader) regularFilter(minAmount *big.Int) PairFilter {
	token0, token1, _ := registry.SortPair(r.cfg.Pair[0], r.cfg.Pair[1])
	return PairFilter{Token0: token0, Token1: token1, Hook: r.cfg.Hook, MinAmount: minAmount}
}

func (r *Reader) readStaked(ctx context.Context, owner common.Address, res *Result) error {
	maxID, err := retry.Value(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) (*big.Int, error) {
		return r.remote.MaxStakedIDForUser(ctx, owner)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("max staked id failed", zap.String("owner", owner.Hex()), zap.Error(err))
		return nil
	}
	if !maxID.IsUint64() || maxID.Uint64() < res.Cursors.NextStakedStartID {
		return nil
	}

	pages, err := indexer.SplitRange(res.Cursors.NextStakedStartID, maxID.Uint64(), r.cfg.PageSize)
	if err != nil {
		return fmt.Errorf("staked pages: %w", err)
	}

	filter := r.stakedFilter()
	count := new(big.Int).SetUint64(r.cfg.PageSize)
	var (
		collected []StakedPage
		next      *big.Int
	)
	for _, span := range pages {
		r.logger.Debug("staked page", zap.Uint64("from", span.From), zap.Uint64("to", span.To))
		start := new(big.Int).SetUint64(span.From)
		page, err := retry.Value(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) (StakedPage, error) {
			return r.remote.StakedTokenIDsWithMinimum(ctx, owner, filter, start, count)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.StakedErr = fmt.Errorf("%w: ids %d-%d: %v", ErrPageFailed, span.From, span.To, err)
			r.logger.Warn("staked page failed, stopping staked scan",
				zap.Uint64("from", span.From),
				zap.Uint64("to", span.To),
				zap.Int("pages_kept", len(collected)),
				zap.Error(err),
			)
			break
		}
		collected = append(collected, page)
		if next == nil && page.NextCursor != nil && page.NextCursor.Sign() >= 0 {
			next = page.NextCursor
		}
	}

	if next != nil {
		res.Cursors.NextStakedStartID = AdvanceCursor(next)
	}

	seen := make(map[string]struct{})
	for _, page := range collected {
		res.StakedTotalA.Add(res.StakedTotalA, sumInts(page.Amount0))
		res.StakedTotalB.Add(res.StakedTotalB, sumInts(page.Amount1))
		for i := 0; i < page.Len(); i++ {
			pos, err := r.format.staked(ctx, page, i)
			if err != nil {
				res.RecordErrors = append(res.RecordErrors, r.recordError("staked", page.IDs[i], err))
				continue
			}
			if _, ok := seen[pos.ID]; ok {
				continue
			}
			seen[pos.ID] = struct{}{}
			res.Staked = append(res.Staked, pos)
		}
	}
	return nil
}

// AdvanceCursor turns a reported next-cursor into a resume point one
// below it, clamped at zero.
func AdvanceCursor(next *big.Int) uint64 {
	if next == nil || next.Sign() <= 0 {
		return 0
	}
	if !next.IsUint64() {
		return ^uint64(0)
	}
	return next.Uint64() - 1
}

func (r *Reader) readRegular(ctx context.Context, owner common.Address, res *Result) error {
	var (
		batches []PositionBatch
		err     error
	)
	if r.owners == nil {
		batches, err = r.scanRange(ctx, owner, res)
	} else {
		batches, err = r.lookupOwned(ctx, owner, res)
	}
	if err != nil {
		return err
	}

	var lowest *big.Int
	seen := make(map[string]struct{})
	for _, batch := range batches {
		for i := 0; i < batch.Len(); i++ {
			id := batch.IDs[i]
			if lowest == nil || id.Cmp(lowest) < 0 {
				lowest = id
			}
			pos, kept, err := r.format.position(ctx, batch, i)
			if err != nil {
				res.RecordErrors = append(res.RecordErrors, r.recordError("position", id, err))
				continue
			}
			if !kept {
				continue
			}
			if _, ok := seen[pos.ID]; ok {
				continue
			}
			seen[pos.ID] = struct{}{}
			res.Positions = append(res.Positions, pos)
		}
	}

	// The range scan resumes just below the lowest owned id; it never
	// moves backwards.
	if lowest != nil {
		if next := AdvanceCursor(lowest); next > res.Cursors.NextRegularStartID {
			res.Cursors.NextRegularStartID = next
		}
	}
	return nil
}

func (r *Reader) waitForLogSearch(ctx context.Context) error {
	if r.search == nil {
		return nil
	}
	for r.search.Searching() {
		r.logger.Info("waiting for log search to complete")
		timer := time.NewTimer(r.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

func (r *Reader) lookupOwned(ctx context.Context, owner common.Address, res *Result) ([]PositionBatch, error) {
	if err := r.waitForLogSearch(ctx); err != nil {
		return nil, err
	}

	owners, err := retry.Value(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.owners.Owners)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("owner index failed", zap.Error(err))
		return nil, nil
	}

	ids := OwnedIDs(owners, owner)
	if len(ids) == 0 {
		r.logger.Info("no position NFTs for owner", zap.String("owner", owner.Hex()))
		return nil, nil
	}

	filter := r.regularFilter(big.NewInt(0))
	var (
		mu      sync.Mutex
		batches []PositionBatch
		g       errgroup.Group
	)
	g.SetLimit(r.cfg.BatchConcurrency)
	total := (len(ids) + r.cfg.BatchSize - 1) / r.cfg.BatchSize
	for start := 0; start < len(ids); start += r.cfg.BatchSize {
		end := start + r.cfg.BatchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		number := start/r.cfg.BatchSize + 1
		g.Go(func() error {
			batch, err := retry.Value(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) (PositionBatch, error) {
				return r.remote.FindUserTokenIDsIndividual(ctx, owner, chunk, filter)
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.FailedBatches++
				r.logger.Warn("position batch failed",
					zap.Int("batch", number),
					zap.Int("batches", total),
					zap.Error(err),
				)
				return nil
			}
			batches = append(batches, batch)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

// OwnedIDs filters an owner index to one owner, sorted ascending.
func OwnedIDs(owners map[string]common.Address, owner common.Address) []*big.Int {
	ids := make([]*big.Int, 0)
	for raw, holder := range owners {
		if holder != owner {
			continue
		}
		id, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })
	return ids
}

func (r *Reader) scanRange(ctx context.Context, owner common.Address, res *Result) ([]PositionBatch, error) {
	maxID, err := retry.Value(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.remote.MaxTokenIDPossible)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("max token id failed", zap.Error(err))
		return nil, nil
	}
	if !maxID.IsUint64() || maxID.Uint64() < res.Cursors.NextRegularStartID {
		return nil, nil
	}
	spans, err := indexer.SplitRange(res.Cursors.NextRegularStartID, maxID.Uint64(), r.cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("position pages: %w", err)
	}

	filter := r.regularFilter(r.cfg.MinHoldings)
	var batches []PositionBatch
	for _, span := range spans {
		from := new(big.Int).SetUint64(span.From)
		to := new(big.Int).SetUint64(span.To)
		batch, err := retry.Value(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) (PositionBatch, error) {
			return r.remote.FindUserTokenIDsWithMinimum(ctx, owner, from, to, filter)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			res.FailedBatches++
			r.logger.Warn("position page failed", zap.Uint64("from", span.From), zap.Uint64("to", span.To), zap.Error(err))
			continue
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

func (r *Reader) recordError(kind string, id *big.Int, err error) model.RecordError {
	r.logger.Warn("dropping record", zap.String("kind", kind), zap.String("token_id", id.String()), zap.Error(err))
	return model.RecordError{Kind: kind, TokenID: id.String(), Stage: "format", Error: err.Error()}
}

func sumInts(values []*big.Int) *big.Int {
	total := new(big.Int)
	for _, v := range values {
		if v != nil {
			total.Add(total, v)
		}
	}
	return total
}
