// Package state persists the engine's durable snapshot: a small Store
// interface with a file-backed implementation and a SQLite-backed
// alternate, both serializing the same Snapshot shape.
package state

import (
	"context"

	"hedgegrid/internal/core"
)

// SideSnapshot is the persisted state for one side.
type SideSnapshot struct {
	Settings core.UserSettings `json:"settings"`
	Runtime  core.RuntimeState `json:"runtime"`
}

// Snapshot is the complete durable state of the engine: both sides plus
// the cyclic-restart flag.
type Snapshot struct {
	Buy       SideSnapshot `json:"buy"`
	Sell      SideSnapshot `json:"sell"`
	CyclicOn  bool         `json:"cyclic_on"`
	UpdatedAt float64      `json:"updated_at"`
}

// Store durably persists and recovers a Snapshot. LoadState returns
// (nil, nil) when no snapshot has ever been saved.
type Store interface {
	SaveState(ctx context.Context, snap *Snapshot) error
	LoadState(ctx context.Context) (*Snapshot, error)
	Healthy(ctx context.Context) error
	Close() error
}
