package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"hedgegrid/pkg/apperrors"
)

// FileStore persists the snapshot as JSON to a single file, writing
// through a temp file plus rename so a crash mid-write never leaves a
// torn file behind (the same pattern the reference trading bot uses for
// its state file).
type FileStore struct {
	path     string
	pipeline failsafe.Executor[any]
}

// NewFileStore wraps path with a retry-then-circuit-break pipeline so a
// handful of transient write failures (e.g. a momentarily full disk) don't
// immediately surface to the caller; a failed snapshot write is logged and
// the in-memory state remains authoritative regardless.
func NewFileStore(path string) *FileStore {
	retryPolicy := retrypolicy.NewBuilder[any]().
		WithBackoff(50*time.Millisecond, 1*time.Second).
		WithMaxRetries(3).
		Build()

	breaker := circuitbreaker.NewBuilder[any]().
		WithFailureThresholdRatio(5, 10).
		WithDelay(10 * time.Second).
		Build()

	return &FileStore{
		path:     path,
		pipeline: failsafe.With[any](retryPolicy, breaker),
	}
}

func (f *FileStore) SaveState(ctx context.Context, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = f.pipeline.GetWithExecution(func(exec failsafe.Execution[any]) (any, error) {
		return nil, f.writeAtomic(data)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

func (f *FileStore) writeAtomic(data []byte) error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}

func (f *FileStore) LoadState(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSnapshotCorrupt, err)
	}
	return &snap, nil
}

// Healthy reports whether the snapshot directory is statable, which is all
// writeAtomic needs to succeed (it creates its temp file there).
func (f *FileStore) Healthy(ctx context.Context) error {
	dir := filepath.Dir(f.path)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("snapshot directory unavailable: %w", err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
