package bridge

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"positionScope/internal/liquidity"
	"positionScope/internal/model"
)

// Option is one entry of a control's position dropdown.
type Option struct {
	ID   string
	Text string
}

// Renderer draws control state. Implementations must not call back into
// Controls.
type Renderer interface {
	RenderOptions(control liquidity.Control, options []Option, selected string)
	RenderControl(control liquidity.Control, enabled bool, label string)
}

// labels of a control. A viewOnly control lists its positions but is never
// enabled: no operation is wired to it.
type labels struct {
	active   string
	empty    string
	viewOnly bool
}

// StakedViewLabel is shown on staked controls that have positions.
const StakedViewLabel = "Staked positions are view only, manage them on the staking contract"

var controlLabels = map[liquidity.Control]labels{
	liquidity.ControlIncrease:      {active: "Increase Liquidity", empty: "No positions to increase Liquidity on, create a position"},
	liquidity.ControlDecrease:      {active: "Remove Liquidity & Claim Fees", empty: "No positions to Decrease Liquidity on, create a position"},
	liquidity.ControlStakeIncrease: {active: StakedViewLabel, empty: "No positions to increase Liquidity on, stake a position first", viewOnly: true},
	liquidity.ControlStakeDecrease: {active: StakedViewLabel, empty: "No positions to decrease Liquidity on, stake a position first", viewOnly: true},
}

var controlOrder = []liquidity.Control{
	liquidity.ControlIncrease,
	liquidity.ControlDecrease,
	liquidity.ControlStakeIncrease,
	liquidity.ControlStakeDecrease,
}

type controlState struct {
	options  []Option
	selected string
	override string
	enabled  bool
	label    string
}

// Controls keeps the dropdowns and buttons in step with the position
// cache. It is a position.Observer and a liquidity.Bridge.
type Controls struct {
	mu       sync.Mutex
	renderer Renderer
	locks    *liquidity.Locks
	state    map[liquidity.Control]*controlState
	logger   *zap.Logger
}

func NewControls(renderer Renderer, locks *liquidity.Locks, logger *zap.Logger) *Controls {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locks == nil {
		locks = liquidity.NewLocks()
	}
	state := make(map[liquidity.Control]*controlState, len(controlOrder))
	for _, control := range controlOrder {
		state[control] = &controlState{label: controlLabels[control].empty}
	}
	return &Controls{renderer: renderer, locks: locks, state: state, logger: logger}
}

// OptionText is the dropdown text of a position.
func OptionText(base model.PositionBase) string {
	return fmt.Sprintf("%s - %s - Position #%s", base.Pool, base.FeeTier, base.TokenID.String())
}

// OnCacheUpdated rebuilds every dropdown and button.
func (c *Controls) OnCacheUpdated(positions []model.Position, staked []model.StakedPosition) {
	regular := make([]Option, 0, len(positions))
	for _, pos := range positions {
		regular = append(regular, Option{ID: pos.ID, Text: OptionText(pos.PositionBase)})
	}
	stakedOpts := make([]Option, 0, len(staked))
	for _, pos := range staked {
		stakedOpts = append(stakedOpts, Option{ID: pos.ID, Text: OptionText(pos.PositionBase)})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, control := range controlOrder {
		options := regular
		if control == liquidity.ControlStakeIncrease || control == liquidity.ControlStakeDecrease {
			options = stakedOpts
		}
		c.refresh(control, options)
	}
}

func (c *Controls) refresh(control liquidity.Control, options []Option) {
	st := c.state[control]
	st.options = options

	switch {
	case st.override != "" && hasOption(options, st.override):
		st.selected = st.override
	case len(options) > 0:
		if st.override != "" {
			c.logger.Debug("manual selection no longer present",
				zap.String("control", string(control)),
				zap.String("position", st.override),
			)
		}
		st.override = ""
		st.selected = options[0].ID
	default:
		st.override = ""
		st.selected = ""
	}
	if c.renderer != nil {
		c.renderer.RenderOptions(control, options, st.selected)
	}

	if c.locks.Locked(control) {
		return
	}
	lbl := controlLabels[control]
	if len(options) == 0 {
		c.setLocked(control, false, lbl.empty)
		return
	}
	c.setLocked(control, !lbl.viewOnly, lbl.active)
}

// Select records a manual choice. It survives refreshes while the
// position stays in the cache.
func (c *Controls) Select(control liquidity.Control, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.state[control]
	if !ok {
		return fmt.Errorf("unknown control %q", control)
	}
	if !hasOption(st.options, id) {
		return fmt.Errorf("position %q not offered by %s", id, control)
	}
	st.override = id
	st.selected = id
	if c.renderer != nil {
		c.renderer.RenderOptions(control, st.options, id)
	}
	return nil
}

// SelectedPositionID returns the current selection of control.
func (c *Controls) SelectedPositionID(control liquidity.Control) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.state[control]
	if !ok || st.selected == "" {
		return "", false
	}
	return st.selected, true
}

// UserOverride returns the manual selection of control, if any.
func (c *Controls) UserOverride(control liquidity.Control) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.state[control]
	if !ok || st.override == "" {
		return "", false
	}
	return st.override, true
}

// SetControlEnabled updates a button. Enabling is ignored while the
// control's lock is held, and view-only controls stay disabled.
func (c *Controls) SetControlEnabled(control liquidity.Control, enabled bool, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enabled && c.locks.Locked(control) {
		c.logger.Debug("control busy, not enabling", zap.String("control", string(control)))
		return
	}
	if enabled {
		lbl := controlLabels[control]
		st, ok := c.state[control]
		switch {
		case ok && len(st.options) == 0:
			enabled, label = false, lbl.empty
		case lbl.viewOnly:
			enabled, label = false, lbl.active
		}
	}
	c.setLocked(control, enabled, label)
}

// Enabled reports the current button state of control.
func (c *Controls) Enabled(control liquidity.Control) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.state[control]
	if !ok {
		return false, ""
	}
	return st.enabled, st.label
}

// Options returns a copy of the dropdown entries of control.
func (c *Controls) Options(control liquidity.Control) []Option {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.state[control]
	if !ok {
		return nil
	}
	return append([]Option(nil), st.options...)
}

func (c *Controls) setLocked(control liquidity.Control, enabled bool, label string) {
	st, ok := c.state[control]
	if !ok {
		st = &controlState{}
		c.state[control] = st
	}
	st.enabled = enabled
	st.label = label
	if c.renderer != nil {
		c.renderer.RenderControl(control, enabled, label)
	}
}

func hasOption(options []Option, id string) bool {
	for _, opt := range options {
		if opt.ID == id {
			return true
		}
	}
	return false
}
