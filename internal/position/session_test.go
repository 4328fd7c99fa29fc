package position

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/finder"
	"positionScope/internal/model"
)

var (
	ownerA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	ownerB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func regular(id int64) model.Position {
	return model.Position{PositionBase: model.PositionBase{TokenID: big.NewInt(id)}}
}

func staked(id int64) model.StakedPosition {
	return model.StakedPosition{PositionBase: model.PositionBase{TokenID: big.NewInt(id)}}
}

type fakeReader struct {
	mu      sync.Mutex
	results map[common.Address]finder.Result
	block   map[common.Address]chan struct{}
	entered chan common.Address
	calls   []finder.Cursors
}

func (f *fakeReader) Read(ctx context.Context, owner common.Address, cursors finder.Cursors) (finder.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cursors)
	wait := f.block[owner]
	res := f.results[owner]
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- owner
	}
	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return finder.Result{}, ctx.Err()
		}
	}
	return res, nil
}

type recordingObserver struct {
	mu      sync.Mutex
	updates [][2]int
}

func (r *recordingObserver) OnCacheUpdated(positions []model.Position, staked []model.StakedPosition) {
	r.mu.Lock()
	r.updates = append(r.updates, [2]int{len(positions), len(staked)})
	r.mu.Unlock()
}

func (r *recordingObserver) last() [2]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates[len(r.updates)-1]
}

func newTestSession(t *testing.T, reader Reader, owner common.Address) *Session {
	t.Helper()
	session, err := NewSession(reader, owner, zap.NewNop())
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	return session
}

func TestCacheSectionsDoNotShareKeys(t *testing.T) {
	cache := NewCache()
	gen := cache.Clear()
	if !cache.Replace(gen, []model.Position{regular(5)}, []model.StakedPosition{staked(5)}) {
		t.Fatalf("replace rejected current generation")
	}
	if _, ok := cache.Position("position_5"); !ok {
		t.Fatalf("missing position_5")
	}
	if _, ok := cache.Staked("stake_position_5"); !ok {
		t.Fatalf("missing stake_position_5")
	}
	if _, ok := cache.Position("stake_position_5"); ok {
		t.Fatalf("staked key visible in regular section")
	}
}

func TestCacheRejectsStaleGeneration(t *testing.T) {
	cache := NewCache()
	stale := cache.Clear()
	cache.Clear()
	if cache.Replace(stale, []model.Position{regular(1)}, nil) {
		t.Fatalf("stale generation committed")
	}
	if len(cache.Positions()) != 0 {
		t.Fatalf("cache modified by stale pass")
	}
}

func TestCacheOrdersByTokenID(t *testing.T) {
	cache := NewCache()
	gen := cache.Clear()
	cache.Replace(gen, []model.Position{regular(30), regular(4), regular(100)}, nil)

	var got []int64
	for _, pos := range cache.Positions() {
		got = append(got, pos.TokenID.Int64())
	}
	if len(got) != 3 || got[0] != 4 || got[1] != 30 || got[2] != 100 {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestReconcileCommitsAndNotifies(t *testing.T) {
	reader := &fakeReader{results: map[common.Address]finder.Result{
		ownerA: {
			Positions:    []model.Position{regular(1), regular(2)},
			Staked:       []model.StakedPosition{staked(42)},
			Cursors:      finder.Cursors{NextRegularStartID: 1, NextStakedStartID: 41},
			StakedTotalA: big.NewInt(10),
			StakedTotalB: big.NewInt(20),
		},
	}}
	session := newTestSession(t, reader, ownerA)
	observer := &recordingObserver{}
	session.Subscribe(observer)
	session.SetEstimatedAPY(12.5)

	report, err := session.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.Stale || report.Positions != 2 || report.Staked != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if observer.last() != [2]int{2, 1} {
		t.Fatalf("unexpected notification: %v", observer.last())
	}
	pos, ok := session.Cache().Staked("stake_position_42")
	if !ok || pos.APY != "12.50%" {
		t.Fatalf("unexpected staked entry: %+v %v", pos, ok)
	}
	if got := session.Cursors(); got.NextStakedStartID != 41 || got.NextRegularStartID != 1 {
		t.Fatalf("cursors not advanced: %+v", got)
	}
	if totals := session.Totals(); totals.StakedA.Int64() != 10 || totals.StakedB.Int64() != 20 {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	if _, err := session.Reconcile(context.Background()); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if reader.calls[1].NextStakedStartID != 41 {
		t.Fatalf("second pass did not resume from cursor: %+v", reader.calls[1])
	}
}

func TestSwitchAccountEmptiesCacheUntilNewPass(t *testing.T) {
	reader := &fakeReader{results: map[common.Address]finder.Result{
		ownerA: {Positions: []model.Position{regular(1)}, Staked: []model.StakedPosition{staked(2)}, Cursors: finder.Cursors{NextStakedStartID: 9}},
		ownerB: {Positions: []model.Position{regular(7)}},
	}}
	session := newTestSession(t, reader, ownerA)
	observer := &recordingObserver{}
	session.Subscribe(observer)

	if _, err := session.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile A: %v", err)
	}

	session.SwitchAccount(ownerB)
	if len(session.Cache().Positions()) != 0 || len(session.Cache().StakedPositions()) != 0 {
		t.Fatalf("previous owner data visible after switch")
	}
	if observer.last() != [2]int{0, 0} {
		t.Fatalf("observers not told about the switch: %v", observer.last())
	}
	if session.Cursors() != (Cursors{}) {
		t.Fatalf("cursors not reset: %+v", session.Cursors())
	}

	if _, err := session.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile B: %v", err)
	}
	positions := session.Cache().Positions()
	if len(positions) != 1 || positions[0].TokenID.Int64() != 7 {
		t.Fatalf("unexpected positions for B: %+v", positions)
	}
}

func TestStalePassDoesNotCommit(t *testing.T) {
	release := make(chan struct{})
	reader := &fakeReader{
		results: map[common.Address]finder.Result{
			ownerA: {Positions: []model.Position{regular(1)}},
			ownerB: {Positions: []model.Position{regular(7)}},
		},
		block:   map[common.Address]chan struct{}{ownerA: release},
		entered: make(chan common.Address, 4),
	}
	session := newTestSession(t, reader, ownerA)
	observer := &recordingObserver{}
	session.Subscribe(observer)

	done := make(chan Report, 1)
	go func() {
		report, _ := session.Reconcile(context.Background())
		done <- report
	}()
	<-reader.entered

	session.SwitchAccount(ownerB)
	if _, err := session.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile B: %v", err)
	}
	<-reader.entered

	close(release)
	report := <-done
	if !report.Stale {
		t.Fatalf("late pass for A was not marked stale")
	}

	positions := session.Cache().Positions()
	if len(positions) != 1 || positions[0].TokenID.Int64() != 7 {
		t.Fatalf("stale pass leaked into cache: %+v", positions)
	}
	if observer.last() != [2]int{1, 0} {
		t.Fatalf("stale pass notified observers: %v", observer.last())
	}
}

func TestReconcileWithoutOwnerIsSkipped(t *testing.T) {
	session := newTestSession(t, &fakeReader{}, common.Address{})
	report, err := session.Reconcile(context.Background())
	if err != nil || !report.Skipped {
		t.Fatalf("expected skipped pass, got %+v %v", report, err)
	}
}
