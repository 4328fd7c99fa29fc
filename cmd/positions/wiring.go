package main

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionScope/internal/chain"
	"positionScope/internal/config"
	"positionScope/internal/dex"
	"positionScope/internal/finder"
	"positionScope/internal/indexer"
	"positionScope/internal/position"
	"positionScope/internal/registry"
	"positionScope/internal/storage"
	"positionScope/internal/storage/postgres"
)

// app holds what every subcommand shares.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	chain    *chain.Client
	registry *registry.Registry
	resolver *registry.Resolver
	pair     [2]common.Address
	hook     common.Address
	store    *postgres.Store
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	tokens := make([]registry.Token, 0, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		addr, err := indexer.ParseAddress("token "+t.Symbol, t.Address)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, registry.Token{Symbol: t.Symbol, Address: addr, Decimals: t.Decimals})
	}
	reg, err := registry.New(tokens)
	if err != nil {
		return nil, fmt.Errorf("token registry: %w", err)
	}

	var pair [2]common.Address
	for i, symbol := range cfg.Pair {
		addr, err := reg.Address(symbol)
		if err != nil {
			return nil, fmt.Errorf("pair token %s: %w", symbol, err)
		}
		pair[i] = addr
	}

	var hook common.Address
	if strings.TrimSpace(cfg.Hook) != "" {
		if hook, err = indexer.ParseAddress("hook", cfg.Hook); err != nil {
			return nil, err
		}
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCRateLimit)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	metaCache := dex.NewTokenMetaCache()
	resolver := registry.NewResolver(reg, func(ctx context.Context, addr common.Address) (registry.Token, error) {
		meta, err := dex.CachedTokenMeta(ctx, chainClient, metaCache, addr, logger)
		if err != nil {
			return registry.Token{}, err
		}
		return registry.Token{Symbol: meta.Symbol, Address: addr, Decimals: meta.Decimals}, nil
	})

	a := &app{
		cfg:      cfg,
		logger:   logger,
		chain:    chainClient,
		registry: reg,
		resolver: resolver,
		pair:     pair,
		hook:     hook,
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			a.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		a.store = store
	}
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.chain != nil {
		a.chain.Close()
	}
	_ = a.logger.Sync()
}

func (a *app) address(field, value string) (common.Address, error) {
	if strings.TrimSpace(value) == "" {
		return common.Address{}, fmt.Errorf("%s address is required", field)
	}
	return indexer.ParseAddress(field, value)
}

// ownerIndexer builds the Transfer log index of the position manager.
func (a *app) ownerIndexer() (*indexer.OwnerIndexer, error) {
	manager, err := a.address("position-manager", a.cfg.PositionManager)
	if err != nil {
		return nil, err
	}

	var archive storage.LogSink
	if a.cfg.TransferLog != "" {
		archive = storage.NewJsonlStorage(a.cfg.TransferLog)
	}

	var state indexer.StateStore
	switch {
	case a.store != nil:
		state = &indexer.DBStateStore{Store: a.store, Name: "owners:" + manager.Hex()}
	case a.cfg.CheckpointEnabled:
		state = &indexer.FileStateStore{Path: a.cfg.Checkpoint}
	}

	return indexer.NewOwnerIndexer(indexer.OwnerConfig{
		Manager:      manager,
		FromBlock:    a.cfg.FromBlock,
		BatchSize:    a.cfg.BlockBatchSize,
		MaxRetries:   a.cfg.MaxRetries,
		RetryBackoff: a.cfg.RetryBackoff,
		Timestamps:   archive != nil,
	}, a.chain, archive, state, a.logger.Named("owners"))
}

// reader builds the finder reader. idx may be nil, in which case regular
// positions are found by id range scans.
func (a *app) reader(idx *indexer.OwnerIndexer) (*finder.Reader, error) {
	finderAddr, err := a.address("position-finder", a.cfg.PositionFinder)
	if err != nil {
		return nil, err
	}
	remote, err := finder.NewClient(a.chain, finderAddr, a.logger.Named("finder"))
	if err != nil {
		return nil, err
	}
	minStaking, err := baseUnits("min-staking", a.cfg.MinStaking)
	if err != nil {
		return nil, err
	}
	minHoldings, err := baseUnits("min-holdings", a.cfg.MinHoldings)
	if err != nil {
		return nil, err
	}

	cfg := finder.Config{
		Pair:             a.pair,
		Hook:             a.hook,
		MinStaking:       minStaking,
		MinHoldings:      minHoldings,
		PageSize:         a.cfg.PageSize,
		BatchSize:        a.cfg.BatchSize,
		BatchConcurrency: a.cfg.BatchConcurrency,
		PollInterval:     a.cfg.PollInterval,
		MaxRetries:       a.cfg.MaxRetries,
		RetryBackoff:     a.cfg.RetryBackoff,
	}
	if idx == nil {
		return finder.NewReader(remote, nil, nil, a.resolver, cfg, a.logger.Named("finder"))
	}
	return finder.NewReader(remote, idx, idx, a.resolver, cfg, a.logger.Named("finder"))
}

// session wires a reconciliation session for owner, with snapshot export
// to JSONL (--out) and Postgres (--pg-dsn) when configured.
func (a *app) session(cmd *cobra.Command, owner common.Address, idx *indexer.OwnerIndexer) (*position.Session, error) {
	reader, err := a.reader(idx)
	if err != nil {
		return nil, err
	}
	session, err := position.NewSession(reader, owner, a.logger.Named("session"))
	if err != nil {
		return nil, err
	}
	if apy, err := cmd.Flags().GetFloat64("apy"); err == nil {
		session.SetEstimatedAPY(apy)
	}

	source := func() (common.Address, uint64) {
		return session.Owner(), session.Cache().Generation()
	}
	if a.cfg.Out != "" {
		session.Subscribe(storage.NewSnapshotObserver(storage.NewJsonlStorage(a.cfg.Out), source, 0, a.logger))
	}
	if a.store != nil {
		session.Subscribe(storage.NewSnapshotObserver(a.store, source, 0, a.logger))
	}
	return session, nil
}

// maybeIndex returns an ownership index when --use-index is set.
func (a *app) maybeIndex(cmd *cobra.Command) (*indexer.OwnerIndexer, error) {
	useIndex, _ := cmd.Flags().GetBool("use-index")
	if !useIndex {
		return nil, nil
	}
	return a.ownerIndexer()
}

func baseUnits(field, value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return new(big.Int), nil
	}
	out, ok := new(big.Int).SetString(value, 10)
	if !ok || out.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s %q", field, value)
	}
	return out, nil
}
