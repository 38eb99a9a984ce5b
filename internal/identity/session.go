package identity

import (
	"strings"

	"github.com/google/uuid"

	"hedgegrid/internal/core"
)

// NewSessionHash returns a fresh 8 lowercase hex character hash, used as the
// hash segment of a session_id's comment tag. Derived from a UUIDv4 and
// trimmed to the 8-hex-character width the comment grammar requires.
func NewSessionHash() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// NewSessionID returns the "{side}_{hash}" session identifier.
func NewSessionID(side core.Side) string {
	return side.String() + "_" + NewSessionHash()
}
