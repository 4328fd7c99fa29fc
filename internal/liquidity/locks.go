package liquidity

import "sync"

// Control names a user-facing trigger.
type Control string

const (
	ControlIncrease      Control = "increaseLiquidityBtn"
	ControlDecrease      Control = "decreaseLiquidityBtn"
	ControlStakeIncrease Control = "increaseLiquidityStakedBtn"
	ControlStakeDecrease Control = "decreaseLiquidityStakedBtn"
)

// Locks tracks which controls have an operation in flight. A held lock
// makes further triggers of the same control a no-op.
type Locks struct {
	mu   sync.Mutex
	held map[Control]bool
}

func NewLocks() *Locks {
	return &Locks{held: make(map[Control]bool)}
}

// TryAcquire takes the lock of control, reporting false if it is held.
func (l *Locks) TryAcquire(control Control) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[control] {
		return false
	}
	l.held[control] = true
	return true
}

func (l *Locks) Release(control Control) {
	l.mu.Lock()
	delete(l.held, control)
	l.mu.Unlock()
}

func (l *Locks) Locked(control Control) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[control]
}
