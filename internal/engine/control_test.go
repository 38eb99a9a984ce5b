package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"hedgegrid/internal/core"
	"hedgegrid/pkg/apperrors"
)

// Row count may not shrink below the executed grid index: once row 1 has
// fired, replacing Rows with just row 0 must be rejected so the engine
// never loses track of an already-open position's row.
func TestApplySettings_RejectsRowsShrinkPastExecutedIndex(t *testing.T) {
	e := newTestEngine(t, threeRowBuySettings(), core.UserSettings{Rows: []core.GridRow{{Index: 0}}})
	ctx := context.Background()

	require.NoError(t, e.ApplyControl(ctx, ControlRequest{BuySwitch: boolPtr(true)}))

	// t1: row 0 fires at market.
	resp, err := e.OnTick(ctx, TickRequest{
		Market: core.Market{Ask: d("100"), Bid: d("99.9")},
		Now:    1,
	})
	require.NoError(t, err)
	require.Equal(t, core.ActionBuy, resp.Action)

	hash := sessionHash(e.ReadSnapshot().BuyRuntime.SessionID)

	// t2: row 0's fill is reported; price drops 10 so row 1 fires too.
	resp, err = e.OnTick(ctx, TickRequest{
		Market: core.Market{Ask: d("90"), Bid: d("89.9")},
		Positions: []core.Position{
			{Price: d("100"), Volume: d("0.01"), Profit: decimal.Zero, Comment: "buy_" + hash + "_idx0"},
		},
		Now: 2,
	})
	require.NoError(t, err)
	require.Equal(t, core.ActionBuy, resp.Action)
	require.Equal(t, "buy_"+hash+"_idx1", resp.Comment)

	// t3: row 1's fill is reported, advancing the exec map to index 1.
	_, err = e.OnTick(ctx, TickRequest{
		Market: core.Market{Ask: d("90"), Bid: d("89.9")},
		Positions: []core.Position{
			{Price: d("100"), Volume: d("0.01"), Profit: decimal.Zero, Comment: "buy_" + hash + "_idx0"},
			{Price: d("90"), Volume: d("0.01"), Profit: decimal.Zero, Comment: "buy_" + hash + "_idx1"},
		},
		Now: 3,
	})
	require.NoError(t, err)

	snap := e.ReadSnapshot()
	require.Len(t, snap.BuyRuntime.ExecMap, 2)

	shrunk := threeRowBuySettings()
	shrunk.Rows = shrunk.Rows[:1]

	err = e.ApplySettings(ctx, SettingsUpdate{Side: core.SideBuy, Settings: shrunk})
	require.Error(t, err)
	require.True(t, errors.Is(err, apperrors.ErrRowsShrinkPastExec))
}

// Growing or holding steady the row count, or shrinking to no less than
// the executed index, is accepted.
func TestApplySettings_AllowsRowsAtOrAboveExecutedIndex(t *testing.T) {
	e := newTestEngine(t, threeRowBuySettings(), core.UserSettings{Rows: []core.GridRow{{Index: 0}}})
	ctx := context.Background()

	require.NoError(t, e.ApplyControl(ctx, ControlRequest{BuySwitch: boolPtr(true)}))

	_, err := e.OnTick(ctx, TickRequest{
		Market: core.Market{Ask: d("100"), Bid: d("99.9")},
		Now:    1,
	})
	require.NoError(t, err)

	grown := threeRowBuySettings()
	grown.Rows = append(grown.Rows, core.GridRow{Index: 3, DollarGap: d("10"), Lots: d("0.01")})

	err = e.ApplySettings(ctx, SettingsUpdate{Side: core.SideBuy, Settings: grown})
	require.NoError(t, err)

	snap := e.ReadSnapshot()
	require.Len(t, snap.BuySettings.Rows, 4)
}
