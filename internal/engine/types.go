package engine

import (
	"github.com/shopspring/decimal"

	"hedgegrid/internal/core"
)

// TickRequest is one heartbeat from the terminal.
type TickRequest struct {
	AccountID string
	Market    core.Market
	Positions []core.Position
	Now       float64 // unix seconds, server time
}

// TickResponse is the single action the engine replies with.
type TickResponse struct {
	Action  core.Action
	Volume  decimal.Decimal
	Comment string
	Alert   bool
}

func waitResponse() TickResponse {
	return TickResponse{Action: core.ActionWait}
}

// ControlRequest is the subset of {buy_switch, sell_switch, cyclic,
// emergency_close} present in one /api/control call. Each non-nil field
// is applied in the order listed within one event.
type ControlRequest struct {
	BuySwitch      *bool
	SellSwitch     *bool
	Cyclic         *bool
	EmergencyClose bool
}

// SettingsUpdate is a full UserSettings replacement request for one side.
type SettingsUpdate struct {
	Side     core.Side
	Settings core.UserSettings
}
