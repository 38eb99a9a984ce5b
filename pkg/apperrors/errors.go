// Package apperrors holds the engine's standardized sentinel errors:
// plain errors.New values, wrapped with %w at call sites so callers can
// errors.Is against them.
package apperrors

import "errors"

var (
	ErrIdentityConflict   = errors.New("identity conflict")
	ErrRowsShrinkPastExec = errors.New("rows would shrink below the executed grid index")
	ErrNegativeValue      = errors.New("negative value not allowed")
	ErrUnknownTPType      = errors.New("unknown tp_type")
	ErrMalformedTick      = errors.New("malformed tick payload")
	ErrSnapshotCorrupt    = errors.New("state snapshot corrupt")
	ErrStoreUnavailable   = errors.New("state store unavailable")
)
