package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"hedgegrid/internal/core"
)

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	store := NewFileStore(path)
	ctx := context.Background()

	snap := &Snapshot{
		Buy: SideSnapshot{
			Settings: core.UserSettings{LimitPrice: decimal.NewFromInt(100)},
			Runtime:  core.NewRuntimeState(),
		},
		CyclicOn:  true,
		UpdatedAt: 123,
	}

	require.NoError(t, store.SaveState(ctx, snap))

	loaded, err := store.LoadState(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.True(t, loaded.Buy.Settings.LimitPrice.Equal(decimal.NewFromInt(100)))
	require.True(t, loaded.CyclicOn)
}

func TestFileStore_LoadMissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "missing.json"))

	loaded, err := store.LoadState(context.Background())
	require.NoError(t, err)
	require.Nil(t, loaded)
}
