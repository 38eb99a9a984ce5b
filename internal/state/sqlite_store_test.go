package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"hedgegrid/internal/core"
)

func TestSQLiteStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	snap := &Snapshot{
		Buy: SideSnapshot{
			Settings: core.UserSettings{LimitPrice: decimal.NewFromInt(100)},
			Runtime:  core.NewRuntimeState(),
		},
		Sell: SideSnapshot{
			Settings: core.UserSettings{LimitPrice: decimal.NewFromInt(200)},
			Runtime:  core.NewRuntimeState(),
		},
		CyclicOn:  true,
		UpdatedAt: 456,
	}

	require.NoError(t, store.SaveState(ctx, snap))

	loaded, err := store.LoadState(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.True(t, loaded.Buy.Settings.LimitPrice.Equal(decimal.NewFromInt(100)))
	require.True(t, loaded.Sell.Settings.LimitPrice.Equal(decimal.NewFromInt(200)))
	require.True(t, loaded.CyclicOn)
	require.Equal(t, float64(456), loaded.UpdatedAt)
}

func TestSQLiteStore_LoadEmptyReturnsNil(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLiteStore(filepath.Join(dir, "empty.db"))
	require.NoError(t, err)
	defer store.Close()

	loaded, err := store.LoadState(context.Background())
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestSQLiteStore_SaveOverwritesPreviousRow(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLiteStore(filepath.Join(dir, "overwrite.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	first := &Snapshot{UpdatedAt: 1}
	second := &Snapshot{UpdatedAt: 2, CyclicOn: true}

	require.NoError(t, store.SaveState(ctx, first))
	require.NoError(t, store.SaveState(ctx, second))

	loaded, err := store.LoadState(ctx)
	require.NoError(t, err)
	require.Equal(t, float64(2), loaded.UpdatedAt)
	require.True(t, loaded.CyclicOn)
}
