package httpapi

import (
	"github.com/shopspring/decimal"

	"hedgegrid/internal/core"
)

// tickRequestWire is the JSON body of POST /api/tick.
type tickRequestWire struct {
	AccountID string          `json:"account_id"`
	Equity    decimal.Decimal `json:"equity"`
	Balance   decimal.Decimal `json:"balance"`
	Symbol    string          `json:"symbol"`
	Ask       decimal.Decimal `json:"ask"`
	Bid       decimal.Decimal `json:"bid"`
	Positions []positionWire  `json:"positions"`
}

type positionWire struct {
	Ticket  int64           `json:"ticket"`
	Type    string          `json:"type"`
	Volume  decimal.Decimal `json:"volume"`
	Price   decimal.Decimal `json:"price"`
	Profit  decimal.Decimal `json:"profit"`
	Comment string          `json:"comment"`
}

// tickResponseWire is the JSON response of POST /api/tick. Volume/Comment/
// Alert are omitted on WAIT, since no order was placed and there is
// nothing to report.
type tickResponseWire struct {
	Action  core.Action      `json:"action"`
	Volume  *decimal.Decimal `json:"volume,omitempty"`
	Comment string           `json:"comment,omitempty"`
	Alert   *bool            `json:"alert,omitempty"`
}

func toPositions(wire []positionWire) []core.Position {
	positions := make([]core.Position, 0, len(wire))
	for _, p := range wire {
		positions = append(positions, core.Position{
			Ticket:  p.Ticket,
			Type:    p.Type,
			Volume:  p.Volume,
			Price:   p.Price,
			Profit:  p.Profit,
			Comment: p.Comment,
		})
	}
	return positions
}

// uiDataResponse is the JSON body of GET /api/ui-data.
type uiDataResponse struct {
	Buy         sideView    `json:"buy"`
	Sell        sideView    `json:"sell"`
	Market      core.Market `json:"market"`
	LastUpdate  float64     `json:"last_update"`
	CyclicOn    bool        `json:"cyclic_on"`
	ErrorStatus string      `json:"error_status,omitempty"`
}

type sideView struct {
	Settings core.UserSettings `json:"settings"`
	Runtime  core.RuntimeState `json:"runtime"`
}

// updateSettingsRequest is the JSON body of POST /api/update-settings: a
// side tag plus a full UserSettings replacement.
type updateSettingsRequest struct {
	Side     core.Side         `json:"side"`
	Settings core.UserSettings `json:"settings"`
}

// controlRequestWire is the JSON body of POST /api/control.
type controlRequestWire struct {
	BuySwitch      *bool `json:"buy_switch,omitempty"`
	SellSwitch     *bool `json:"sell_switch,omitempty"`
	Cyclic         *bool `json:"cyclic,omitempty"`
	EmergencyClose bool  `json:"emergency_close,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
