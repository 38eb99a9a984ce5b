package engine

import (
	"context"
	"fmt"

	"hedgegrid/internal/core"
	"hedgegrid/internal/identity"
	"hedgegrid/pkg/apperrors"
)

// Snapshot is the read-consistent view exposed to the UI: a single copy
// taken under the engine's mutex, so settings and runtime can never be
// observed out of sync with each other.
type Snapshot struct {
	BuySettings  core.UserSettings
	BuyRuntime   core.RuntimeState
	SellSettings core.UserSettings
	SellRuntime  core.RuntimeState
	CyclicOn     bool
	ErrorStatus  string
	Market       core.Market
	LastUpdate   float64
}

// ReadSnapshot returns a deep copy of the current state.
func (e *Engine) ReadSnapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		BuySettings:  e.buySettings.Clone(),
		BuyRuntime:   e.buyRuntime.Clone(),
		SellSettings: e.sellSettings.Clone(),
		SellRuntime:  e.sellRuntime.Clone(),
		CyclicOn:     e.cyclicOn,
		ErrorStatus:  e.errorStatus,
		Market:       e.market,
		LastUpdate:   e.lastUpdate,
	}
}

// ApplySettings is a full replacement of one side's UserSettings, rejected
// if rows would shrink below the already-executed grid index.
func (e *Engine) ApplySettings(ctx context.Context, upd SettingsUpdate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var runtime *core.RuntimeState
	if upd.Side == core.SideBuy {
		runtime = &e.buyRuntime
	} else {
		runtime = &e.sellRuntime
	}

	if err := validateSettings(upd.Settings, runtime); err != nil {
		return err
	}

	if upd.Side == core.SideBuy {
		e.buySettings = upd.Settings
	} else {
		e.sellSettings = upd.Settings
	}

	return e.persist(ctx)
}

func validateSettings(s core.UserSettings, runtime *core.RuntimeState) error {
	if s.LimitPrice.IsNegative() || s.TPValue.IsNegative() || s.HedgeValue.IsNegative() {
		return fmt.Errorf("%w: limit_price, tp_value, and hedge_value must be >= 0", apperrors.ErrNegativeValue)
	}
	if len(s.Rows) < len(runtime.ExecMap) {
		return fmt.Errorf("%w: rows has %d entries, exec_map has advanced to %d", apperrors.ErrRowsShrinkPastExec, len(s.Rows), len(runtime.ExecMap))
	}
	for i, r := range s.Rows {
		if r.Index != i {
			return fmt.Errorf("rows must be contiguous starting at 0, row %d has index %d", i, r.Index)
		}
		if r.Lots.IsNegative() {
			return fmt.Errorf("%w: rows[%d].lots", apperrors.ErrNegativeValue, i)
		}
		if i > 0 && r.DollarGap.IsNegative() {
			return fmt.Errorf("%w: rows[%d].dollar_gap", apperrors.ErrNegativeValue, i)
		}
	}
	return nil
}

// ApplyControl applies the control toggle and emergency-close mutations,
// applying present fields in order: buy_switch, sell_switch, cyclic,
// emergency_close.
func (e *Engine) ApplyControl(ctx context.Context, req ControlRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	buy := side{id: core.SideBuy, settings: &e.buySettings, runtime: &e.buyRuntime}
	sell := side{id: core.SideSell, settings: &e.sellSettings, runtime: &e.sellRuntime}

	if req.BuySwitch != nil {
		e.applySwitch(&buy, *req.BuySwitch)
	}
	if req.SellSwitch != nil {
		e.applySwitch(&sell, *req.SellSwitch)
	}
	if req.Cyclic != nil {
		e.cyclicOn = *req.Cyclic
	}
	if req.EmergencyClose {
		e.emergencyClose()
	}

	return e.persist(ctx)
}

// applySwitch drives the Idle<->WaitingLimit/Armed transitions for the
// operator on/off toggle.
func (e *Engine) applySwitch(s *side, on bool) {
	if on == s.runtime.On {
		return
	}

	if on {
		// A side still draining after an operator switch-off stays off
		// until the drain completes.
		if s.runtime.IsClosing {
			return
		}
		s.runtime.On = true
		s.runtime.SessionID = identity.NewSessionID(s.id)
		s.runtime.WaitingLimit = s.settings.LimitPrice.IsPositive()
		return
	}

	// Operator flipping off with open positions: transition through
	// Closing so the grid drains with a CLOSE_ALL emission next tick,
	// instead of abandoning the positions unmanaged. On is cleared now so
	// the drain does not re-arm the side under cyclic restart.
	if len(s.runtime.ExecMap) > 0 {
		s.runtime.IsClosing = true
		s.runtime.On = false
	} else {
		s.runtime.On = false
		s.runtime.SessionID = ""
		s.runtime.WaitingLimit = false
	}
}

// emergencyClose forces both sides into Closing, to be drained by the
// normal closing-completion path in subsequent ticks.
func (e *Engine) emergencyClose() {
	for _, s := range []*side{
		{id: core.SideBuy, settings: &e.buySettings, runtime: &e.buyRuntime},
		{id: core.SideSell, settings: &e.sellSettings, runtime: &e.sellRuntime},
	} {
		if s.runtime.SessionID != "" {
			s.runtime.IsClosing = true
		} else {
			s.runtime.On = false
			s.runtime.HedgeTriggered = false
		}
	}
	e.errorStatus = ""
}
