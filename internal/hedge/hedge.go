// Package hedge implements the counter-side injection policy fired when a
// side's aggregate loss crosses its hedge_value threshold.
package hedge

import (
	"github.com/shopspring/decimal"

	"hedgegrid/internal/core"
)

// Trigger mutates the opposite side's settings and runtime in place,
// forcing it into (or expanding) an accumulation that offsets the losing
// side's volume v. newSessionID is only consumed by Case A, where the
// opposite side gets a fresh session; oppositeSide names which side
// settings/runtime belong to, used to pick the Case B reference price.
func Trigger(oppositeSide core.Side, settings *core.UserSettings, runtime *core.RuntimeState, v decimal.Decimal, market core.Market, newSessionID string) {
	if !runtime.On || runtime.SessionID == "" {
		triggerCaseA(settings, runtime, v, newSessionID)
		return
	}
	triggerCaseB(oppositeSide, settings, runtime, v, market)
}

// triggerCaseA forces a dormant opposite side on with a single synthetic
// row sized to the losing side's aggregate volume.
func triggerCaseA(settings *core.UserSettings, runtime *core.RuntimeState, v decimal.Decimal, newSessionID string) {
	runtime.On = true
	runtime.SessionID = newSessionID
	runtime.WaitingLimit = false
	runtime.ExecMap = make(map[int]core.RowExecStats)

	settings.Rows = []core.GridRow{
		{Index: 0, DollarGap: decimal.Zero, Lots: v, Alert: true},
	}
}

// triggerCaseB appends a synthetic row to an already-active opposite
// side, sized to the losing side's aggregate volume and gapped so its
// expansion condition is already satisfied on the next tick.
func triggerCaseB(oppositeSide core.Side, settings *core.UserSettings, runtime *core.RuntimeState, v decimal.Decimal, market core.Market) {
	last := len(runtime.ExecMap) - 1
	stats, ok := runtime.ExecMap[last]
	if !ok {
		// No executed rows to anchor the gap to; treat as Case A instead
		// of appending a meaningless row.
		triggerCaseA(settings, runtime, v, runtime.SessionID)
		return
	}

	var pNow decimal.Decimal
	if oppositeSide == core.SideSell {
		pNow = market.Bid
	} else {
		pNow = market.Ask
	}

	gap := stats.EntryPrice.Sub(pNow).Abs()

	settings.Rows = append(settings.Rows, core.GridRow{
		Index:     len(settings.Rows),
		DollarGap: gap,
		Lots:      v,
		Alert:     true,
	})
}
