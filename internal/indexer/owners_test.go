package indexer

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"positionScope/internal/dex"
	"positionScope/internal/model"
)

var (
	manager = common.HexToAddress("0x7c5f5a4bbd8fd63184577525326123b519429bdc")
	alice   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob     = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type fakeSource struct {
	mu      sync.Mutex
	head    uint64
	logs    []types.Log
	ranges  []Range
	failing int
	during  func()
}

func (f *fakeSource) GetChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeSource) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeSource) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number, nil
}

func (f *fakeSource) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.during != nil {
		f.during()
	}
	if f.failing > 0 {
		f.failing--
		return nil, errors.New("rpc timeout")
	}
	f.ranges = append(f.ranges, Range{From: fromBlock, To: toBlock})
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber >= fromBlock && log.BlockNumber <= toBlock {
			out = append(out, log)
		}
	}
	return out, nil
}

type memoryLogs struct {
	records []model.LogRecord
}

func (m *memoryLogs) PutLogBatch(logs []model.LogRecord) error {
	m.records = append(m.records, logs...)
	return nil
}

func transferLog(t *testing.T, block uint64, index uint, from, to common.Address, id int64) types.Log {
	t.Helper()
	decoder, err := dex.NewTransferDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	return types.Log{
		Address:     manager,
		BlockNumber: block,
		Index:       index,
		TxHash:      common.BigToHash(big.NewInt(int64(block)*100 + int64(index))),
		Topics: []common.Hash{
			decoder.Topic(),
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(big.NewInt(id)),
		},
	}
}

func TestOwnerIndexerFollowsTransfers(t *testing.T) {
	source := &fakeSource{head: 25, logs: []types.Log{
		transferLog(t, 3, 0, common.Address{}, alice, 1),
		transferLog(t, 4, 0, common.Address{}, alice, 2),
		transferLog(t, 12, 1, alice, bob, 1),
		transferLog(t, 20, 0, alice, common.Address{}, 2),
		transferLog(t, 21, 0, common.Address{}, alice, 3),
	}}
	archive := &memoryLogs{}
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "owners.json")}

	idx, err := NewOwnerIndexer(OwnerConfig{Manager: manager, FromBlock: 1, BatchSize: 10, Timestamps: true}, source, archive, state, zap.NewNop())
	if err != nil {
		t.Fatalf("indexer: %v", err)
	}
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	owners, err := idx.Owners(context.Background())
	if err != nil {
		t.Fatalf("owners: %v", err)
	}
	if len(owners) != 2 || owners["1"] != bob || owners["3"] != alice {
		t.Fatalf("owners = %v", owners)
	}
	if _, ok := owners["2"]; ok {
		t.Fatalf("burned token still owned")
	}
	if len(source.ranges) != 3 || source.ranges[2] != (Range{From: 21, To: 25}) {
		t.Fatalf("ranges = %+v", source.ranges)
	}
	if len(archive.records) != 5 || archive.records[0].Timestamp != 1_700_000_003 {
		t.Fatalf("archive = %+v", archive.records)
	}
	if idx.Searching() {
		t.Fatalf("searching flag left set")
	}

	saved, ok, err := state.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load checkpoint: %v %v", ok, err)
	}
	if saved.LastBlock != 25 || saved.Owners["1"] != bob.Hex() {
		t.Fatalf("checkpoint = %+v", saved)
	}
}

func TestOwnerIndexerResumesFromCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owners.json")
	state := &FileStateStore{Path: path}
	if err := state.Save(context.Background(), model.OwnershipState{LastBlock: 30, Owners: map[string]string{"7": alice.Hex()}}); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}
	source := &fakeSource{head: 40, logs: []types.Log{
		transferLog(t, 10, 0, common.Address{}, bob, 1),
		transferLog(t, 35, 0, alice, bob, 7),
	}}

	idx, err := NewOwnerIndexer(OwnerConfig{Manager: manager, FromBlock: 1, BatchSize: 100}, source, nil, state, zap.NewNop())
	if err != nil {
		t.Fatalf("indexer: %v", err)
	}
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(source.ranges) != 1 || source.ranges[0] != (Range{From: 31, To: 40}) {
		t.Fatalf("ranges = %+v", source.ranges)
	}
	owners, _ := idx.Owners(context.Background())
	if len(owners) != 1 || owners["7"] != bob {
		t.Fatalf("owners = %v", owners)
	}

	source.head = 40
	source.ranges = nil
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if len(source.ranges) != 0 {
		t.Fatalf("up-to-date sync scanned %+v", source.ranges)
	}
}

func TestOwnerIndexerRetriesAndFlagsSearch(t *testing.T) {
	source := &fakeSource{head: 5, failing: 2}
	idx, err := NewOwnerIndexer(OwnerConfig{Manager: manager, BatchSize: 10, MaxRetries: 3, RetryBackoff: 1}, source, nil, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("indexer: %v", err)
	}
	var sawSearching bool
	source.during = func() { sawSearching = idx.Searching() }

	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !sawSearching {
		t.Fatalf("searching flag not set during scan")
	}
	if idx.Searching() {
		t.Fatalf("searching flag left set")
	}
	if idx.LastBlock() != 5 {
		t.Fatalf("last block = %d", idx.LastBlock())
	}
}

func TestOwnerIndexerRejectsConcurrentSync(t *testing.T) {
	source := &fakeSource{head: 5}
	idx, err := NewOwnerIndexer(OwnerConfig{Manager: manager, BatchSize: 10}, source, nil, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("indexer: %v", err)
	}
	var inner error
	source.during = func() {
		source.during = nil
		source.mu.Unlock()
		inner = idx.Sync(context.Background())
		source.mu.Lock()
	}
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !errors.Is(inner, ErrSyncRunning) {
		t.Fatalf("nested sync = %v, want ErrSyncRunning", inner)
	}
}

func TestOwnerIndexerDropsRepeatedLogsInBatch(t *testing.T) {
	mint := transferLog(t, 2, 0, common.Address{}, alice, 9)
	source := &fakeSource{head: 5, logs: []types.Log{mint, mint}}
	archive := &memoryLogs{}
	idx, err := NewOwnerIndexer(OwnerConfig{Manager: manager, FromBlock: 1, BatchSize: 10}, source, archive, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("indexer: %v", err)
	}
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(archive.records) != 1 {
		t.Fatalf("expected one archived record, got %d", len(archive.records))
	}

	source.mu.Lock()
	source.head = 12
	source.logs = append(source.logs, transferLog(t, 11, 0, alice, bob, 9))
	source.mu.Unlock()
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if got := source.ranges[len(source.ranges)-1]; got != (Range{From: 6, To: 12}) {
		t.Fatalf("second sync range = %+v", got)
	}
	if len(archive.records) != 2 {
		t.Fatalf("expected two archived records, got %d", len(archive.records))
	}
	owners, err := idx.Owners(context.Background())
	if err != nil {
		t.Fatalf("owners: %v", err)
	}
	if owners["9"] != bob {
		t.Fatalf("owners = %v", owners)
	}
}
