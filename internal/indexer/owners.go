package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"positionScope/internal/dex"
	"positionScope/internal/model"
	"positionScope/internal/retry"
	"positionScope/internal/storage"
)

// ErrSyncRunning is returned when Sync is called while a scan is active.
var ErrSyncRunning = errors.New("ownership sync already running")

// LogSource is the chain surface the indexer reads. chain.Client
// satisfies it.
type LogSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// OwnerConfig holds the settings of an ownership scan.
type OwnerConfig struct {
	Manager      common.Address
	FromBlock    uint64
	ToBlock      uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
	// Timestamps fetches block times for archived records.
	Timestamps bool
}

// OwnerIndexer follows position NFT transfers and keeps the current owner
// of every token id.
type OwnerIndexer struct {
	cfg     OwnerConfig
	source  LogSource
	archive storage.LogSink
	state   StateStore
	decoder *dex.TransferDecoder
	logger  *zap.Logger

	searching atomic.Bool

	mu        sync.RWMutex
	owners    map[string]common.Address
	lastBlock uint64
	synced    bool
}

// NewOwnerIndexer builds an indexer. archive and state may be nil.
func NewOwnerIndexer(cfg OwnerConfig, source LogSource, archive storage.LogSink, state StateStore, logger *zap.Logger) (*OwnerIndexer, error) {
	if source == nil {
		return nil, fmt.Errorf("log source is nil")
	}
	if cfg.Manager == (common.Address{}) {
		return nil, fmt.Errorf("position manager address is required")
	}
	if cfg.BatchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	decoder, err := dex.NewTransferDecoder()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OwnerIndexer{
		cfg:     cfg,
		source:  source,
		archive: archive,
		state:   state,
		decoder: decoder,
		logger:  logger,
		owners:  make(map[string]common.Address),
	}, nil
}

// Searching reports whether a scan is in progress.
func (x *OwnerIndexer) Searching() bool {
	return x.searching.Load()
}

// Owners returns a copy of the token id to owner map.
func (x *OwnerIndexer) Owners(ctx context.Context) (map[string]common.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[string]common.Address, len(x.owners))
	for id, owner := range x.owners {
		out[id] = owner
	}
	return out, nil
}

// LastBlock is the last block folded into the owner map.
func (x *OwnerIndexer) LastBlock() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.lastBlock
}

// Sync scans transfers from the checkpoint (or FromBlock) to ToBlock (or
// the chain head) and saves a checkpoint after every batch.
func (x *OwnerIndexer) Sync(ctx context.Context) error {
	if !x.searching.CompareAndSwap(false, true) {
		return ErrSyncRunning
	}
	defer x.searching.Store(false)

	chainID, err := x.source.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	from, err := x.resume(ctx)
	if err != nil {
		return err
	}
	to := x.cfg.ToBlock
	if to == 0 {
		latest, err := x.source.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}
	if from > to {
		x.logger.Info("ownership up to date", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, x.cfg.BatchSize)
	if err != nil {
		return err
	}
	topics := []common.Hash{x.decoder.Topic()}
	for _, r := range ranges {
		if err := ctx.Err(); err != nil {
			return err
		}
		logs, err := retry.Value(ctx, x.cfg.MaxRetries, x.cfg.RetryBackoff, func(ctx context.Context) ([]types.Log, error) {
			logs, err := x.source.FilterLogs(ctx, r.From, r.To, []common.Address{x.cfg.Manager}, topics)
			if err != nil {
				x.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", r.From), zap.Uint64("to", r.To))
			}
			return logs, err
		})
		if err != nil {
			return fmt.Errorf("filter logs %d-%d: %w", r.From, r.To, err)
		}

		records, err := x.records(ctx, chainID.Uint64(), logs)
		if err != nil {
			return err
		}
		applied := x.apply(records, r.To)

		if x.archive != nil {
			if err := x.archive.PutLogBatch(records); err != nil {
				return fmt.Errorf("archive logs: %w", err)
			}
		}
		if err := x.checkpoint(ctx); err != nil {
			return err
		}
		x.logger.Info("ownership batch complete",
			zap.Uint64("from", r.From),
			zap.Uint64("to", r.To),
			zap.Int("transfers", applied),
		)
	}
	return nil
}

// resume loads the checkpoint on the first sync and returns the first
// block to scan.
func (x *OwnerIndexer) resume(ctx context.Context) (uint64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	from := x.cfg.FromBlock
	if !x.synced && x.state != nil {
		state, ok, err := x.state.Load(ctx)
		if err != nil {
			return 0, fmt.Errorf("load checkpoint: %w", err)
		}
		if ok {
			for id, owner := range state.Owners {
				if common.IsHexAddress(owner) {
					x.owners[id] = common.HexToAddress(owner)
				}
			}
			x.lastBlock = state.LastBlock
			x.synced = true
			x.logger.Info("resume from checkpoint",
				zap.Uint64("last_block", state.LastBlock),
				zap.Int("owners", len(x.owners)),
			)
		}
	}
	if x.synced && x.lastBlock >= from {
		from = x.lastBlock + 1
	}
	return from, nil
}

func (x *OwnerIndexer) records(ctx context.Context, chainID uint64, logs []types.Log) ([]model.LogRecord, error) {
	ingestedAt := time.Now().UTC().Format(time.RFC3339Nano)
	records := make([]model.LogRecord, 0, len(logs))
	// Batches never overlap, so duplicates can only repeat within one.
	seen := make(map[string]struct{}, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		key := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		var ts uint64
		if x.cfg.Timestamps {
			var err error
			ts, err = retry.Value(ctx, x.cfg.MaxRetries, x.cfg.RetryBackoff, func(ctx context.Context) (uint64, error) {
				return x.source.BlockTimestamp(ctx, log.BlockNumber)
			})
			if err != nil {
				return nil, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
		}
		records = append(records, buildLogRecord(chainID, log, ts, ingestedAt))
	}
	return records, nil
}

// apply folds transfers into the owner map in log order. A transfer to the
// zero address burns the token.
func (x *OwnerIndexer) apply(records []model.LogRecord, through uint64) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	applied := 0
	for _, record := range records {
		transfer, err := x.decoder.Decode(record)
		if err != nil {
			x.logger.Debug("skip undecodable log", zap.String("tx", record.TxHash), zap.Error(err))
			continue
		}
		to := common.HexToAddress(transfer.To)
		if to == (common.Address{}) {
			delete(x.owners, transfer.TokenID)
		} else {
			x.owners[transfer.TokenID] = to
		}
		applied++
	}
	x.lastBlock = through
	x.synced = true
	return applied
}

func (x *OwnerIndexer) checkpoint(ctx context.Context) error {
	if x.state == nil {
		return nil
	}
	x.mu.RLock()
	state := model.OwnershipState{LastBlock: x.lastBlock, Owners: make(map[string]string, len(x.owners))}
	for id, owner := range x.owners {
		state.Owners[id] = owner.Hex()
	}
	x.mu.RUnlock()
	if err := x.state.Save(ctx, state); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func buildLogRecord(chainID uint64, log types.Log, timestamp uint64, ingestedAt string) model.LogRecord {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}
	return model.LogRecord{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(log.Data),
		Removed:     log.Removed,
		Timestamp:   timestamp,
		IngestedAt:  ingestedAt,
	}
}
