package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"hedgegrid/internal/core"
	"hedgegrid/internal/logging"
	"hedgegrid/internal/state"
)

func newTestEngine(t *testing.T, buy, sell core.UserSettings) *Engine {
	t.Helper()
	store := state.NewFileStore(filepath.Join(t.TempDir(), "snapshot.json"))
	logger, err := logging.New("ERROR")
	require.NoError(t, err)

	e, err := New(context.Background(), buy, sell, false, 5*time.Second, store, logger)
	require.NoError(t, err)
	return e
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func threeRowBuySettings() core.UserSettings {
	return core.UserSettings{
		LimitPrice: decimal.Zero,
		TPType:     core.TPFixedMoney,
		TPValue:    d("5"),
		HedgeValue: decimal.Zero,
		Rows: []core.GridRow{
			{Index: 0, DollarGap: decimal.Zero, Lots: d("0.01")},
			{Index: 1, DollarGap: d("10"), Lots: d("0.01")},
			{Index: 2, DollarGap: d("10"), Lots: d("0.01")},
		},
	}
}

// S1 — market BUY, three-row grid, TP by fixed money.
func TestScenario_S1_MarketBuyThreeRowGridTPFixedMoney(t *testing.T) {
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
	require.True(t, resp.Volume.Equal(d("0.01")))

	sessionID := e.ReadSnapshot().BuyRuntime.SessionID
	require.NotEmpty(t, sessionID)
	hash := sessionHash(sessionID)

	// t2: position reflects row 0 fill, no further action.
	resp, err = e.OnTick(ctx, TickRequest{
		Market: core.Market{Ask: d("100"), Bid: d("99.9")},
		Positions: []core.Position{
			{Price: d("100"), Volume: d("0.01"), Profit: decimal.Zero, Comment: "buy_" + hash + "_idx0"},
		},
		Now: 2,
	})
	require.NoError(t, err)
	require.Equal(t, core.ActionWait, resp.Action)

	// t3: price drops 10, expansion fires idx1.
	resp, err = e.OnTick(ctx, TickRequest{
		Market: core.Market{Ask: d("90"), Bid: d("89.9")},
		Positions: []core.Position{
			{Price: d("100"), Volume: d("0.01"), Profit: decimal.Zero, Comment: "buy_" + hash + "_idx0"},
		},
		Now: 3,
	})
	require.NoError(t, err)
	require.Equal(t, core.ActionBuy, resp.Action)
	require.Equal(t, "buy_"+hash+"_idx1", resp.Comment)

	// t7: aggregate profit reaches the 5 target, engine closes.
	resp, err = e.OnTick(ctx, TickRequest{
		Market: core.Market{Ask: d("95"), Bid: d("94.9")},
		Positions: []core.Position{
			{Price: d("100"), Volume: d("0.01"), Profit: d("3"), Comment: "buy_" + hash + "_idx0"},
			{Price: d("90"), Volume: d("0.01"), Profit: d("2"), Comment: "buy_" + hash + "_idx1"},
		},
		Now: 7,
	})
	require.NoError(t, err)
	require.Equal(t, core.ActionCloseAll, resp.Action)

	// t8: positions drained, grace elapsed -> Idle.
	resp, err = e.OnTick(ctx, TickRequest{
		Market: core.Market{Ask: d("95"), Bid: d("94.9")},
		Now:    13,
	})
	require.NoError(t, err)
	require.Equal(t, core.ActionWait, resp.Action)
	snap := e.ReadSnapshot()
	require.False(t, snap.BuyRuntime.IsClosing)
	require.Empty(t, snap.BuyRuntime.SessionID)
}

// S3 — hedge trigger into an off opposite side.
func TestScenario_S3_HedgeTriggerIntoOffOpposite(t *testing.T) {
	buySettings := threeRowBuySettings()
	buySettings.HedgeValue = d("50")
	e := newTestEngine(t, buySettings, core.UserSettings{Rows: []core.GridRow{{Index: 0}}})
	ctx := context.Background()

	require.NoError(t, e.ApplyControl(ctx, ControlRequest{BuySwitch: boolPtr(true)}))
	_, err := e.OnTick(ctx, TickRequest{Market: core.Market{Ask: d("100"), Bid: d("99.9")}, Now: 1})
	require.NoError(t, err)

	hash := sessionHash(e.ReadSnapshot().BuyRuntime.SessionID)

	resp, err := e.OnTick(ctx, TickRequest{
		Market: core.Market{Ask: d("80"), Bid: d("79.9")},
		Positions: []core.Position{
			{Price: d("100"), Volume: d("0.01"), Profit: d("-25.05"), Comment: "buy_" + hash + "_idx0"},
			{Price: d("90"), Volume: d("0.02"), Profit: d("-25.05"), Comment: "buy_" + hash + "_idx1"},
		},
		Now: 2,
	})
	require.NoError(t, err)
	require.Equal(t, core.ActionWait, resp.Action) // hedge injection defers emission to next tick

	snap := e.ReadSnapshot()
	require.True(t, snap.BuyRuntime.HedgeTriggered)
	require.True(t, snap.SellRuntime.On)
	require.Len(t, snap.SellSettings.Rows, 1)
	require.True(t, snap.SellSettings.Rows[0].Lots.Equal(d("0.03")))

	// Next tick: SELL row 0 fires at market.
	resp, err = e.OnTick(ctx, TickRequest{
		Market: core.Market{Ask: d("80"), Bid: d("79.9")},
		Positions: []core.Position{
			{Price: d("100"), Volume: d("0.01"), Profit: d("-25.05"), Comment: "buy_" + hash + "_idx0"},
			{Price: d("90"), Volume: d("0.02"), Profit: d("-25.05"), Comment: "buy_" + hash + "_idx1"},
		},
		Now: 3,
	})
	require.NoError(t, err)
	require.Equal(t, core.ActionSell, resp.Action)
	require.True(t, resp.Volume.Equal(d("0.03")))
}

// S4 — sync-shield suppression.
func TestScenario_S4_SyncShieldSuppression(t *testing.T) {
	e := newTestEngine(t, threeRowBuySettings(), core.UserSettings{Rows: []core.GridRow{{Index: 0}}})
	ctx := context.Background()

	require.NoError(t, e.ApplyControl(ctx, ControlRequest{BuySwitch: boolPtr(true)}))
	resp, err := e.OnTick(ctx, TickRequest{Market: core.Market{Ask: d("100"), Bid: d("99.9")}, Now: 10})
	require.NoError(t, err)
	require.Equal(t, core.ActionBuy, resp.Action)

	// t=11: broker hasn't reflected the position yet; must not rotate.
	resp, err = e.OnTick(ctx, TickRequest{Market: core.Market{Ask: d("100"), Bid: d("99.9")}, Now: 11})
	require.NoError(t, err)
	require.Equal(t, core.ActionWait, resp.Action)
	require.NotEmpty(t, e.ReadSnapshot().BuyRuntime.SessionID)

	// t=15.5: grace elapsed, external close path fires.
	resp, err = e.OnTick(ctx, TickRequest{Market: core.Market{Ask: d("100"), Bid: d("99.9")}, Now: 15.5})
	require.NoError(t, err)
	require.Equal(t, core.ActionWait, resp.Action)
	require.Empty(t, e.ReadSnapshot().BuyRuntime.SessionID)
}

// S5 — identity conflict.
func TestScenario_S5_IdentityConflict(t *testing.T) {
	e := newTestEngine(t, threeRowBuySettings(), core.UserSettings{Rows: []core.GridRow{{Index: 0}}})
	ctx := context.Background()
	require.NoError(t, e.ApplyControl(ctx, ControlRequest{BuySwitch: boolPtr(true)}))
	_, err := e.OnTick(ctx, TickRequest{Market: core.Market{Ask: d("100"), Bid: d("99.9")}, Now: 1})
	require.NoError(t, err)

	resp, err := e.OnTick(ctx, TickRequest{
		Market: core.Market{Ask: d("100"), Bid: d("99.9")},
		Positions: []core.Position{
			{Price: d("100"), Volume: d("0.01"), Comment: "buy_deadbeef_idx0"},
		},
		Now: 2,
	})
	require.NoError(t, err)
	require.Equal(t, core.ActionWait, resp.Action)
	require.NotEmpty(t, e.ErrorStatus())
}

// S6 — alert acknowledgement.
func TestScenario_S6_AlertAcknowledgement(t *testing.T) {
	settings := threeRowBuySettings()
	settings.Rows[1].Alert = true
	e := newTestEngine(t, settings, core.UserSettings{Rows: []core.GridRow{{Index: 0}}})
	ctx := context.Background()

	updated := e.ReadSnapshot().BuySettings
	updated.Rows[1].Alert = false
	require.NoError(t, e.ApplySettings(ctx, SettingsUpdate{Side: core.SideBuy, Settings: updated}))

	snap := e.ReadSnapshot()
	require.False(t, snap.BuySettings.Rows[1].Alert)
}

func boolPtr(b bool) *bool { return &b }
