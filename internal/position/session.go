package position

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/finder"
	"positionScope/internal/model"
)

// Cursors are the scan resume points carried between passes.
type Cursors = finder.Cursors

// Reader performs one remote read for an owner.
type Reader interface {
	Read(ctx context.Context, owner common.Address, cursors finder.Cursors) (finder.Result, error)
}

// Totals sums the raw staked amounts of the last committed pass, in
// configured pair order.
type Totals struct {
	StakedA *big.Int
	StakedB *big.Int
}

// Report describes one reconciliation pass.
type Report struct {
	Owner         common.Address
	Generation    uint64
	Positions     int
	Staked        int
	FailedBatches int
	StakedErr     error
	RecordErrors  []model.RecordError
	// Stale is set when the owner changed or another pass started while
	// this one was reading; nothing was committed.
	Stale bool
	// Skipped is set when no owner is connected.
	Skipped bool
}

// Session owns the cache, the cursors and the observers of one client.
type Session struct {
	reader Reader
	cache  *Cache
	logger *zap.Logger

	mu        sync.Mutex
	owner     common.Address
	cursors   Cursors
	apy       float64
	totals    Totals
	observers []Observer

	notifyMu sync.Mutex
}

func NewSession(reader Reader, owner common.Address, logger *zap.Logger) (*Session, error) {
	if reader == nil {
		return nil, fmt.Errorf("position reader is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		reader: reader,
		cache:  NewCache(),
		logger: logger,
		owner:  owner,
		totals: Totals{StakedA: new(big.Int), StakedB: new(big.Int)},
	}, nil
}

// Cache exposes the position cache for read access.
func (s *Session) Cache() *Cache {
	return s.cache
}

// Subscribe registers an observer for cache updates.
func (s *Session) Subscribe(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

func (s *Session) Owner() common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

func (s *Session) Cursors() Cursors {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors
}

// SetEstimatedAPY sets the APY, in percent, stamped on staked positions
// from the next pass on.
func (s *Session) SetEstimatedAPY(percent float64) {
	s.mu.Lock()
	s.apy = percent
	s.mu.Unlock()
}

func (s *Session) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Totals{
		StakedA: new(big.Int).Set(s.totals.StakedA),
		StakedB: new(big.Int).Set(s.totals.StakedB),
	}
}

// SwitchAccount invalidates everything tied to the previous owner. A pass
// still reading for that owner will not commit.
func (s *Session) SwitchAccount(owner common.Address) {
	s.mu.Lock()
	previous := s.owner
	s.owner = owner
	s.resetLocked()
	s.mu.Unlock()

	s.logger.Info("account switched",
		zap.String("from", previous.Hex()),
		zap.String("to", owner.Hex()),
	)
	s.notify(s.cache.Generation(), nil, nil)
}

// Reset clears the cache, cursors and totals but keeps the owner.
func (s *Session) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	s.notify(s.cache.Generation(), nil, nil)
}

func (s *Session) resetLocked() {
	s.cache.Clear()
	s.cursors = Cursors{}
	s.totals = Totals{StakedA: new(big.Int), StakedB: new(big.Int)}
}

// Reconcile runs one pass: clear, read, commit, notify. A pass that lost
// its generation while reading commits nothing and notifies nobody.
func (s *Session) Reconcile(ctx context.Context) (Report, error) {
	s.mu.Lock()
	owner := s.owner
	if owner == (common.Address{}) {
		s.mu.Unlock()
		return Report{Skipped: true}, nil
	}
	cursors := s.cursors
	apy := s.apy
	gen := s.cache.Clear()
	s.mu.Unlock()

	report := Report{Owner: owner, Generation: gen}

	res, err := s.reader.Read(ctx, owner, cursors)
	if err != nil {
		return report, fmt.Errorf("read positions: %w", err)
	}
	report.FailedBatches = res.FailedBatches
	report.StakedErr = res.StakedErr
	report.RecordErrors = res.RecordErrors

	apyText := fmt.Sprintf("%.2f%%", apy)
	for i := range res.Staked {
		res.Staked[i].APY = apyText
	}

	s.mu.Lock()
	if s.owner != owner || !s.cache.Replace(gen, res.Positions, res.Staked) {
		s.mu.Unlock()
		s.logger.Info("discarding stale pass",
			zap.String("owner", owner.Hex()),
			zap.Uint64("generation", gen),
		)
		report.Stale = true
		return report, nil
	}
	s.cursors = res.Cursors
	totals := Totals{StakedA: nonNil(res.StakedTotalA), StakedB: nonNil(res.StakedTotalB)}
	s.totals = totals
	s.mu.Unlock()

	positions := s.cache.Positions()
	staked := s.cache.StakedPositions()
	report.Positions = len(positions)
	report.Staked = len(staked)

	s.logger.Info("positions reconciled",
		zap.String("owner", owner.Hex()),
		zap.Uint64("generation", gen),
		zap.Int("positions", report.Positions),
		zap.Int("staked", report.Staked),
		zap.String("staked_total_a", totals.StakedA.String()),
		zap.String("staked_total_b", totals.StakedB.String()),
		zap.Uint64("next_regular_start_id", res.Cursors.NextRegularStartID),
		zap.Uint64("next_staked_start_id", res.Cursors.NextStakedStartID),
	)
	s.notify(gen, positions, staked)
	return report, nil
}

func (s *Session) notify(gen uint64, positions []model.Position, staked []model.StakedPosition) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if s.cache.Generation() != gen {
		return
	}

	s.mu.Lock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	if positions == nil {
		positions = []model.Position{}
	}
	if staked == nil {
		staked = []model.StakedPosition{}
	}
	for _, o := range observers {
		o.OnCacheUpdated(positions, staked)
	}
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
