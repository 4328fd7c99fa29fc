package balances

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

	"positionScope/internal/dex"
	"positionScope/internal/registry"
	"positionScope/internal/retry"
	"positionScope/internal/units"
)

// Reader reads token and native balances. chain.Client satisfies it.
type Reader interface {
	dex.ContractCaller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Balance is one wallet balance.
type Balance struct {
	Symbol  string         `json:"symbol"`
	Address common.Address `json:"address"`
	Raw     *big.Int       `json:"raw"`
	Display string         `json:"display"`
}

// Refresher keeps the latest wallet balances of every registered token.
type Refresher struct {
	reader       Reader
	registry     *registry.Registry
	concurrency  int
	maxRetries   int
	retryBackoff time.Duration
	logger       *zap.Logger

	mu     sync.RWMutex
	owner  common.Address
	latest []Balance
}

func NewRefresher(reader Reader, reg *registry.Registry, maxRetries int, retryBackoff time.Duration, logger *zap.Logger) (*Refresher, error) {
	if reader == nil {
		return nil, fmt.Errorf("balance reader is nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		reader:       reader,
		registry:     reg,
		concurrency:  4,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		logger:       logger,
	}, nil
}

// Refresh reads every registered token for owner. Balances that fail to
// load are left out and reported in the returned error.
func (r *Refresher) Refresh(ctx context.Context, owner common.Address) error {
	tokens := r.registry.Tokens()
	out := make([]Balance, len(tokens))
	errs := make([]error, len(tokens))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, token := range tokens {
		i, token := i, token
		g.Go(func() error {
			raw, err := retry.Value(ctx, r.maxRetries, r.retryBackoff, func(ctx context.Context) (*big.Int, error) {
				return r.balanceOf(ctx, token.Address, owner)
			})
			if err != nil {
				errs[i] = fmt.Errorf("%s balance: %w", token.Symbol, err)
				return nil
			}
			out[i] = Balance{
				Symbol:  token.Symbol,
				Address: token.Address,
				Raw:     raw,
				Display: units.Format(raw, token.Decimals),
			}
			return nil
		})
	}
	_ = g.Wait()

	loaded := make([]Balance, 0, len(out))
	for i, bal := range out {
		if errs[i] != nil {
			continue
		}
		loaded = append(loaded, bal)
	}
	sort.Slice(loaded, func(i, j int) bool { return loaded[i].Symbol < loaded[j].Symbol })

	r.mu.Lock()
	r.owner = owner
	r.latest = loaded
	r.mu.Unlock()

	err := errors.Join(errs...)
	if err != nil {
		r.logger.Warn("balance refresh incomplete", zap.String("owner", owner.Hex()), zap.Error(err))
	} else {
		r.logger.Debug("balances refreshed", zap.String("owner", owner.Hex()), zap.Int("tokens", len(loaded)))
	}
	return err
}

// Latest returns the owner and balances of the last refresh.
func (r *Refresher) Latest() (common.Address, []Balance) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner, append([]Balance(nil), r.latest...)
}

func (r *Refresher) balanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	if token == (common.Address{}) {
		return r.reader.BalanceAt(ctx, owner, nil)
	}
	return dex.BalanceOf(ctx, r.reader, token, owner, nil)
}
