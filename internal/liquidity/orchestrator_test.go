package liquidity

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/dex"
	"positionScope/internal/model"
	"positionScope/internal/position"
)

var (
	tokenLow  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenHigh = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	owner     = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	hook      = common.HexToAddress("0x00000000000000000000000000000000000000dd")
)

// testPosition has token A sorting after token B, so every per-token value
// must be swapped into currency order.
func testPosition() model.Position {
	return model.Position{
		PositionBase: model.PositionBase{
			ID:            model.PositionKey(big.NewInt(7)),
			TokenID:       big.NewInt(7),
			TokenA:        "B0x",
			TokenB:        "0xBTC",
			TokenAAddress: tokenHigh,
			TokenBAddress: tokenLow,
			DecimalsA:     18,
			DecimalsB:     8,
		},
		PoolKey: model.PoolKey{Currency0: tokenLow, Currency1: tokenHigh, Fee: 3000, TickSpacing: 60, Hooks: hook},
	}
}

type fakePositions map[string]model.Position

func (f fakePositions) Position(key string) (model.Position, bool) {
	pos, ok := f[key]
	return pos, ok
}

type fakeRemote struct {
	mu         sync.Mutex
	liqArgs    [2]*big.Int
	liquidity  *big.Int
	pctArgs    []interface{}
	amount0    *big.Int
	amount1    *big.Int
	current    *big.Int
	amountsErr error
}

func (f *fakeRemote) LiquidityForAmounts(ctx context.Context, sqrtPriceX96, sqrtPriceA, sqrtPriceB, amount0, amount1 *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liqArgs = [2]*big.Int{amount0, amount1}
	return f.liquidity, nil
}

func (f *fakeRemote) AmountsForPercentage(ctx context.Context, token0, token1 common.Address, bps, tokenID *big.Int, hook common.Address) (*big.Int, *big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pctArgs = []interface{}{token0, token1, bps.Int64(), tokenID.Int64(), hook}
	if f.amountsErr != nil {
		return nil, nil, f.amountsErr
	}
	return f.amount0, f.amount1, nil
}

func (f *fakeRemote) PositionLiquidity(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	return f.current, nil
}

type fakePricer struct{}

func (fakePricer) SqrtPriceX96(ctx context.Context, key model.PoolKey) (*big.Int, error) {
	return new(big.Int).Lsh(big.NewInt(1), 96), nil
}

type fakeApprover struct {
	mu       sync.Mutex
	approved map[common.Address]*big.Int
}

func (f *fakeApprover) Approve(ctx context.Context, token common.Address, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approved == nil {
		f.approved = make(map[common.Address]*big.Int)
	}
	f.approved[token] = amount
	return nil
}

type submission struct {
	unlock   []byte
	deadline *big.Int
	value    *big.Int
}

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   []submission
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSubmitter) Submit(ctx context.Context, unlockData []byte, deadline, value *big.Int) (common.Hash, error) {
	f.mu.Lock()
	f.calls = append(f.calls, submission{unlock: unlockData, deadline: deadline, value: value})
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return common.Hash{}, f.err
	}
	return common.HexToHash("0x01"), nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type controlState struct {
	enabled bool
	label   string
}

type fakeBridge struct {
	mu       sync.Mutex
	selected map[Control]string
	states   []controlState
}

func (f *fakeBridge) SelectedPositionID(control Control) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.selected[control]
	return id, ok
}

func (f *fakeBridge) SetControlEnabled(control Control, enabled bool, label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, controlState{enabled: enabled, label: label})
}

func (f *fakeBridge) last() controlState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[len(f.states)-1]
}

type countingReconciler struct {
	mu    sync.Mutex
	calls int
}

func (c *countingReconciler) Reconcile(ctx context.Context) (position.Report, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return position.Report{}, nil
}

type countingBalances struct {
	owners []common.Address
}

func (c *countingBalances) Refresh(ctx context.Context, owner common.Address) error {
	c.owners = append(c.owners, owner)
	return nil
}

type harness struct {
	orch       *Orchestrator
	remote     *fakeRemote
	approver   *fakeApprover
	submitter  *fakeSubmitter
	bridge     *fakeBridge
	reconciler *countingReconciler
	balances   *countingBalances
	now        time.Time
}

func newHarness(t *testing.T, pos model.Position) *harness {
	t.Helper()
	h := &harness{
		remote:     &fakeRemote{liquidity: big.NewInt(777)},
		approver:   &fakeApprover{},
		submitter:  &fakeSubmitter{},
		bridge:     &fakeBridge{selected: map[Control]string{ControlIncrease: pos.ID, ControlDecrease: pos.ID}},
		reconciler: &countingReconciler{},
		balances:   &countingBalances{},
		now:        time.Unix(1_700_000_000, 0),
	}
	orch, err := NewOrchestrator(Deps{
		Positions:  fakePositions{pos.ID: pos},
		Remote:     h.remote,
		Pricer:     fakePricer{},
		Approver:   h.approver,
		Submitter:  h.submitter,
		Reconciler: h.reconciler,
		Balances:   h.balances,
		Bridge:     h.bridge,
	}, Config{Owner: owner, Hook: hook}, zap.NewNop())
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	orch.now = func() time.Time { return h.now }
	orch.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	h.orch = orch
	return h
}

func decodeSubmission(t *testing.T, sub submission) dex.Plan {
	t.Helper()
	plan, err := dex.DecodePlan(sub.unlock)
	if err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	return plan
}

func TestIncreaseSettlesPair(t *testing.T) {
	h := newHarness(t, testPosition())

	out, err := h.orch.Increase(context.Background(), IncreaseInput{AmountA: "1", AmountB: "0.5", SlippagePercent: 1.0})
	if err != nil {
		t.Fatalf("increase: %v", err)
	}
	if out.Skipped != nil || out.TxHash != common.HexToHash("0x01") {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	amount0 := big.NewInt(50_000_000)
	amount1, _ := new(big.Int).SetString("1000000000000000000", 10)
	if h.approver.approved[tokenLow].Cmp(amount0) != 0 || h.approver.approved[tokenHigh].Cmp(amount1) != 0 {
		t.Fatalf("approvals not in currency order: %v", h.approver.approved)
	}
	min1, _ := new(big.Int).SetString("990000000000000000", 10)
	if h.remote.liqArgs[0].Int64() != 49_500_000 || h.remote.liqArgs[1].Cmp(min1) != 0 {
		t.Fatalf("liquidity sized from %v", h.remote.liqArgs)
	}

	if h.submitter.count() != 1 {
		t.Fatalf("expected one submission, got %d", h.submitter.count())
	}
	sub := h.submitter.calls[0]
	if sub.deadline.Int64() != h.now.Unix()+160 {
		t.Fatalf("deadline = %s", sub.deadline)
	}
	if sub.value.Sign() != 0 {
		t.Fatalf("no native value expected, got %s", sub.value)
	}
	plan := decodeSubmission(t, sub)
	if !bytes.Equal(plan.Actions, []byte{dex.ActionIncreaseLiquidity, dex.ActionSettlePair}) {
		t.Fatalf("actions = %x", plan.Actions)
	}
	id, liquidity, max0, max1, err := dex.DecodeModifyLiquidity(plan.Params[0])
	if err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if id.Int64() != 7 || liquidity.Int64() != 777 || max0.Cmp(amount0) != 0 || max1.Cmp(amount1) != 0 {
		t.Fatalf("params = %s %s %s %s", id, liquidity, max0, max1)
	}
	settle, _ := dex.EncodeSettlePair(tokenLow, tokenHigh)
	if !bytes.Equal(plan.Params[1], settle) {
		t.Fatalf("settle pair params mismatch")
	}

	if h.reconciler.calls != 1 || len(h.balances.owners) != 1 || h.balances.owners[0] != owner {
		t.Fatalf("post-success refresh not run: reconcile=%d balances=%v", h.reconciler.calls, h.balances.owners)
	}
	if st := h.bridge.last(); !st.enabled || st.label != LabelIncrease {
		t.Fatalf("control not restored: %+v", st)
	}
	if h.orch.Locks().Locked(ControlIncrease) {
		t.Fatalf("lock still held")
	}
}

func TestIncreaseClosesCurrenciesWhenFeesCoverDeposit(t *testing.T) {
	pos := testPosition()
	pos.FeesA, _ = new(big.Int).SetString("2000000000000000000", 10)
	h := newHarness(t, pos)

	if _, err := h.orch.Increase(context.Background(), IncreaseInput{AmountA: "1", AmountB: "0.5", SlippagePercent: 1.0}); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if _, ok := h.approver.approved[tokenHigh]; ok {
		t.Fatalf("token covered by fees should not be approved")
	}
	if h.approver.approved[tokenLow].Int64() != 50_000_000 {
		t.Fatalf("token0 approval = %v", h.approver.approved[tokenLow])
	}
	plan := decodeSubmission(t, h.submitter.calls[0])
	want := []byte{dex.ActionIncreaseLiquidity, dex.ActionCloseCurrency, dex.ActionCloseCurrency}
	if !bytes.Equal(plan.Actions, want) {
		t.Fatalf("actions = %x, want %x", plan.Actions, want)
	}
	close0, _ := dex.EncodeCloseCurrency(tokenLow)
	close1, _ := dex.EncodeCloseCurrency(tokenHigh)
	if !bytes.Equal(plan.Params[1], close0) || !bytes.Equal(plan.Params[2], close1) {
		t.Fatalf("close currency params out of order")
	}
}

func TestIncreaseNativeValue(t *testing.T) {
	pos := testPosition()
	pos.TokenBAddress = common.Address{}
	pos.PoolKey.Currency0 = common.Address{}
	h := newHarness(t, pos)

	if _, err := h.orch.Increase(context.Background(), IncreaseInput{AmountA: "1", AmountB: "0.5"}); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if _, ok := h.approver.approved[common.Address{}]; ok {
		t.Fatalf("native currency should not be approved")
	}
	if got := h.submitter.calls[0].value; got.Int64() != 50_000_000 {
		t.Fatalf("native value = %s", got)
	}
}

func TestIncreaseRejectsEmptyDeposit(t *testing.T) {
	h := newHarness(t, testPosition())
	if _, err := h.orch.Increase(context.Background(), IncreaseInput{AmountA: "0", AmountB: ""}); err == nil {
		t.Fatalf("expected error for empty deposit")
	}
	if h.submitter.count() != 0 {
		t.Fatalf("nothing should be submitted")
	}
}

func TestConcurrentTriggersSubmitOnce(t *testing.T) {
	h := newHarness(t, testPosition())
	h.submitter.entered = make(chan struct{})
	h.submitter.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.Increase(context.Background(), IncreaseInput{AmountA: "1", AmountB: "0.5"})
		done <- err
	}()
	<-h.submitter.entered

	out, err := h.orch.Increase(context.Background(), IncreaseInput{AmountA: "1", AmountB: "0.5"})
	if err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if !errors.Is(out.Skipped, ErrBusy) {
		t.Fatalf("second trigger should be skipped as busy, got %+v", out)
	}
	if st := h.bridge.last(); st.enabled || st.label != LabelPending {
		t.Fatalf("control re-enabled while busy: %+v", st)
	}

	close(h.submitter.release)
	if err := <-done; err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if h.submitter.count() != 1 {
		t.Fatalf("expected exactly one submission, got %d", h.submitter.count())
	}
}

func TestFailureReleasesControl(t *testing.T) {
	h := newHarness(t, testPosition())
	h.submitter.err = ErrReverted

	_, err := h.orch.Increase(context.Background(), IncreaseInput{AmountA: "1", AmountB: "0.5"})
	if !errors.Is(err, ErrReverted) {
		t.Fatalf("expected revert error, got %v", err)
	}
	if h.orch.Locks().Locked(ControlIncrease) {
		t.Fatalf("lock still held after failure")
	}
	if st := h.bridge.last(); !st.enabled || st.label != LabelIncrease {
		t.Fatalf("control not restored: %+v", st)
	}
	if h.reconciler.calls != 0 || len(h.balances.owners) != 0 {
		t.Fatalf("failure should not trigger refresh")
	}
}

func TestMissingSelectionIsSilent(t *testing.T) {
	h := newHarness(t, testPosition())
	h.bridge.selected = map[Control]string{ControlIncrease: model.PositionKey(big.NewInt(99))}

	out, err := h.orch.Increase(context.Background(), IncreaseInput{AmountA: "1"})
	if err != nil {
		t.Fatalf("missing position should not error: %v", err)
	}
	if !errors.Is(out.Skipped, ErrNoPosition) {
		t.Fatalf("expected ErrNoPosition, got %+v", out)
	}
	if h.submitter.count() != 0 || h.orch.Locks().Locked(ControlIncrease) {
		t.Fatalf("silent abort must not submit or hold the lock")
	}
}

func TestDecreasePartial(t *testing.T) {
	h := newHarness(t, testPosition())
	h.remote.amount0 = big.NewInt(1000)
	h.remote.amount1 = big.NewInt(2000)
	h.remote.current = big.NewInt(1_000_000)

	if _, err := h.orch.Decrease(context.Background(), DecreaseInput{Percent: 50, SlippagePercent: 1.0}); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	wantArgs := []interface{}{tokenLow, tokenHigh, int64(5000), int64(7), hook}
	for i, want := range wantArgs {
		if h.remote.pctArgs[i] != want {
			t.Fatalf("amounts query arg %d = %v, want %v", i, h.remote.pctArgs[i], want)
		}
	}

	sub := h.submitter.calls[0]
	if sub.value.Sign() != 0 {
		t.Fatalf("decrease should carry no value")
	}
	plan := decodeSubmission(t, sub)
	if !bytes.Equal(plan.Actions, []byte{dex.ActionDecreaseLiquidity, dex.ActionTakePair}) {
		t.Fatalf("actions = %x", plan.Actions)
	}
	_, liquidity, min0, min1, err := dex.DecodeModifyLiquidity(plan.Params[0])
	if err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if liquidity.Int64() != 500_100 || min0.Int64() != 990 || min1.Int64() != 1980 {
		t.Fatalf("params = %s %s %s", liquidity, min0, min1)
	}
	take, _ := dex.EncodeTakePair(tokenLow, tokenHigh, owner)
	if !bytes.Equal(plan.Params[1], take) {
		t.Fatalf("take pair params mismatch")
	}
	if st := h.bridge.last(); !st.enabled || st.label != LabelDecrease {
		t.Fatalf("control not restored: %+v", st)
	}
}

func TestDecreaseFullRemovesAll(t *testing.T) {
	h := newHarness(t, testPosition())
	h.remote.amount0 = big.NewInt(1000)
	h.remote.amount1 = big.NewInt(2000)
	h.remote.current = big.NewInt(1_000_000)

	if _, err := h.orch.Decrease(context.Background(), DecreaseInput{Percent: 100}); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	plan := decodeSubmission(t, h.submitter.calls[0])
	_, liquidity, _, _, err := dex.DecodeModifyLiquidity(plan.Params[0])
	if err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if liquidity.Int64() != 1_000_000 {
		t.Fatalf("full removal liquidity = %s", liquidity)
	}
}

func TestDecreaseAmountsQueryFailure(t *testing.T) {
	h := newHarness(t, testPosition())
	h.remote.amountsErr = errors.New("rpc down")

	if _, err := h.orch.Decrease(context.Background(), DecreaseInput{Percent: 10}); err == nil {
		t.Fatalf("expected error when amounts query fails")
	}
	if h.submitter.count() != 0 {
		t.Fatalf("nothing should be submitted")
	}
}
