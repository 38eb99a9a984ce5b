// Package core defines the shared domain types of the decision engine:
// sides, grid rows, settings, and runtime state. Nothing here owns
// behavior — the state machine, decision engine, and hedge controller
// operate on these types but live in their own packages.
package core

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is one of the two symmetric accumulation sides.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func ParseSide(s string) (Side, bool) {
	switch s {
	case "buy":
		return SideBuy, true
	case "sell":
		return SideSell, true
	default:
		return SideBuy, false
	}
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, ok := ParseSide(str)
	if !ok {
		return fmt.Errorf("invalid side: %q", str)
	}
	*s = parsed
	return nil
}

// TPType is the closed enumeration of take-profit target bases.
type TPType int

const (
	TPDisabled TPType = iota
	TPEquityPct
	TPBalancePct
	TPFixedMoney
)

func ParseTPType(s string) (TPType, bool) {
	switch s {
	case "", "disabled":
		return TPDisabled, true
	case "equity_pct":
		return TPEquityPct, true
	case "balance_pct":
		return TPBalancePct, true
	case "fixed_money":
		return TPFixedMoney, true
	default:
		return TPDisabled, false
	}
}

func (t TPType) String() string {
	switch t {
	case TPEquityPct:
		return "equity_pct"
	case TPBalancePct:
		return "balance_pct"
	case TPFixedMoney:
		return "fixed_money"
	default:
		return ""
	}
}

func (t TPType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TPType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseTPType(s)
	if !ok {
		return fmt.Errorf("invalid tp_type: %q", s)
	}
	*t = parsed
	return nil
}

// GridRow is one planned entry at an offset from the previous row. Row 0 is
// the anchor entry; its DollarGap is never read.
type GridRow struct {
	Index     int             `json:"index" yaml:"index"`
	DollarGap decimal.Decimal `json:"dollar_gap" yaml:"dollar_gap"`
	Lots      decimal.Decimal `json:"lots" yaml:"lots"`
	Alert     bool            `json:"alert" yaml:"alert"`
}

// UserSettings is the per-side operator-controlled configuration.
type UserSettings struct {
	LimitPrice decimal.Decimal `json:"limit_price" yaml:"limit_price"`
	TPType     TPType          `json:"tp_type" yaml:"tp_type"`
	TPValue    decimal.Decimal `json:"tp_value" yaml:"tp_value"`
	HedgeValue decimal.Decimal `json:"hedge_value" yaml:"hedge_value"`
	Rows       []GridRow       `json:"rows" yaml:"rows"`
}

// Clone returns a deep copy so callers can mutate without aliasing the
// store's copy.
func (s UserSettings) Clone() UserSettings {
	rows := make([]GridRow, len(s.Rows))
	copy(rows, s.Rows)
	return UserSettings{
		LimitPrice: s.LimitPrice,
		TPType:     s.TPType,
		TPValue:    s.TPValue,
		HedgeValue: s.HedgeValue,
		Rows:       rows,
	}
}

// RowExecStats is what the engine tracks per fired grid row.
type RowExecStats struct {
	Index      int             `json:"index"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Lots       decimal.Decimal `json:"lots"`
	Profit     decimal.Decimal `json:"profit"`
	Timestamp  float64         `json:"timestamp"`
}

// RuntimeState is the per-side mutable state the engine owns.
type RuntimeState struct {
	On               bool                 `json:"on"`
	SessionID        string               `json:"session_id"`
	WaitingLimit     bool                 `json:"waiting_limit"`
	IsClosing        bool                 `json:"is_closing"`
	HedgeTriggered   bool                 `json:"hedge_triggered"`
	ExecMap          map[int]RowExecStats `json:"exec_map"`
	StartRef         decimal.Decimal      `json:"start_ref"`
	LastOrderSentTS  float64              `json:"last_order_sent_ts"`
	EquityAtArm      decimal.Decimal      `json:"equity_at_arm"`
	EquityAtArmIsSet bool                 `json:"equity_at_arm_is_set"`
}

// NewRuntimeState returns a zero-value runtime state with an initialized map.
func NewRuntimeState() RuntimeState {
	return RuntimeState{ExecMap: make(map[int]RowExecStats)}
}

// Clone returns a deep copy of the runtime state.
func (r RuntimeState) Clone() RuntimeState {
	m := make(map[int]RowExecStats, len(r.ExecMap))
	for k, v := range r.ExecMap {
		m[k] = v
	}
	r.ExecMap = m
	return r
}

// AggregateProfit sums Profit across the exec map.
func (r RuntimeState) AggregateProfit() decimal.Decimal {
	total := decimal.Zero
	for _, v := range r.ExecMap {
		total = total.Add(v.Profit)
	}
	return total
}

// AggregateLots sums Lots across the exec map.
func (r RuntimeState) AggregateLots() decimal.Decimal {
	total := decimal.Zero
	for _, v := range r.ExecMap {
		total = total.Add(v.Lots)
	}
	return total
}

// Market is the last-seen market snapshot, shared by both sides.
type Market struct {
	Ask     decimal.Decimal `json:"ask"`
	Bid     decimal.Decimal `json:"bid"`
	Equity  decimal.Decimal `json:"equity"`
	Balance decimal.Decimal `json:"balance"`
	Symbol  string          `json:"symbol"`
}

// Position is one broker-reported open position, as carried on the tick.
type Position struct {
	Ticket  int64           `json:"ticket"`
	Type    string          `json:"type"` // "BUY" or "SELL"
	Volume  decimal.Decimal `json:"volume"`
	Price   decimal.Decimal `json:"price"`
	Profit  decimal.Decimal `json:"profit"`
	Comment string          `json:"comment"`
}

// Action is the closed enumeration of engine responses to a tick.
type Action int

const (
	ActionWait Action = iota
	ActionBuy
	ActionSell
	ActionCloseAll
)

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	case ActionCloseAll:
		return "CLOSE_ALL"
	default:
		return "WAIT"
	}
}

func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func ParseAction(s string) (Action, bool) {
	switch s {
	case "WAIT":
		return ActionWait, true
	case "BUY":
		return ActionBuy, true
	case "SELL":
		return ActionSell, true
	case "CLOSE_ALL":
		return ActionCloseAll, true
	default:
		return ActionWait, false
	}
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseAction(s)
	if !ok {
		return fmt.Errorf("invalid action: %q", s)
	}
	*a = parsed
	return nil
}
