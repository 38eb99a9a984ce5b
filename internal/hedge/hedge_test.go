package hedge

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"hedgegrid/internal/core"
)

func TestTrigger_CaseA_ForcesOppositeOn(t *testing.T) {
	settings := &core.UserSettings{Rows: []core.GridRow{{Index: 0}}}
	runtime := core.NewRuntimeState()
	v := decimal.NewFromFloat(0.03)

	Trigger(core.SideSell, settings, &runtime, v, core.Market{}, "sell_abcd1234")

	require.True(t, runtime.On)
	require.Equal(t, "sell_abcd1234", runtime.SessionID)
	require.False(t, runtime.WaitingLimit)
	require.Len(t, settings.Rows, 1)
	require.Equal(t, 0, settings.Rows[0].Index)
	require.True(t, settings.Rows[0].Lots.Equal(v))
	require.True(t, settings.Rows[0].Alert)
}

func TestTrigger_CaseB_AppendsRow(t *testing.T) {
	settings := &core.UserSettings{Rows: []core.GridRow{{Index: 0}, {Index: 1}}}
	runtime := core.NewRuntimeState()
	runtime.On = true
	runtime.SessionID = "sell_abcd1234"
	runtime.ExecMap[0] = core.RowExecStats{Index: 0, EntryPrice: decimal.NewFromInt(100)}
	runtime.ExecMap[1] = core.RowExecStats{Index: 1, EntryPrice: decimal.NewFromInt(90)}

	v := decimal.NewFromFloat(0.02)
	market := core.Market{Ask: decimal.NewFromInt(85), Bid: decimal.NewFromInt(84)}

	Trigger(core.SideSell, settings, &runtime, v, market, "")

	require.Len(t, settings.Rows, 3)
	newRow := settings.Rows[2]
	require.Equal(t, 2, newRow.Index)
	require.True(t, newRow.Lots.Equal(v))
	require.True(t, newRow.Alert)
	// p_last (90) - p_now (bid=84, since oppositeSide is SELL) = 6
	require.True(t, newRow.DollarGap.Equal(decimal.NewFromInt(6)))
}
