package state

import "fmt"

// New builds the configured backend: "file" for a single JSON file written
// atomically, "sqlite" for a checksummed single-row table.
func New(backend, path string) (Store, error) {
	switch backend {
	case "file":
		return NewFileStore(path), nil
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend: %q", backend)
	}
}
