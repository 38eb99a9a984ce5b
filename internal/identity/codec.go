// Package identity encodes and parses the position-comment tag that binds a
// broker position to a server session: "{side}_{hash}_idx{n}".
package identity

import (
	"fmt"
	"regexp"
	"strconv"

	"hedgegrid/internal/core"
)

// tagPattern matches the managed position comment grammar:
// ^(buy|sell)_[0-9a-f]{8}_idx(0|[1-9][0-9]*)$
var tagPattern = regexp.MustCompile(`^(buy|sell)_([0-9a-f]{8})_idx(0|[1-9][0-9]*)$`)

// Tag is a decoded position comment.
type Tag struct {
	Side  core.Side
	Hash  string
	Index int
}

// Encode builds the comment tag for a given side, session hash, and grid
// index. Encode is pure and never fails: callers are responsible for
// supplying a valid 8-hex-character hash.
func Encode(side core.Side, hash string, index int) string {
	return fmt.Sprintf("%s_%s_idx%d", side, hash, index)
}

// Decode parses a position comment into its tag. A comment that does not
// match the grammar is foreign: Decode returns ok=false and the caller must
// not treat the position as managed.
func Decode(comment string) (Tag, bool) {
	m := tagPattern.FindStringSubmatch(comment)
	if m == nil {
		return Tag{}, false
	}

	var side core.Side
	switch m[1] {
	case "buy":
		side = core.SideBuy
	case "sell":
		side = core.SideSell
	}

	index, err := strconv.Atoi(m[3])
	if err != nil {
		return Tag{}, false
	}

	return Tag{Side: side, Hash: m[2], Index: index}, true
}
