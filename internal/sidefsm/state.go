// Package sidefsm names the side lifecycle and derives it from a side's
// runtime flags. The flags themselves (On, WaitingLimit, IsClosing,
// HedgeTriggered) are the actual state owned by core.RuntimeState; this
// package gives that combination of flags a name for logging and for the
// read-model.
package sidefsm

import "hedgegrid/internal/core"

// State is one of the five named side lifecycle stages.
type State int

const (
	Idle State = iota
	WaitingLimit
	Armed
	Closing
	HedgeLocked
)

func (s State) String() string {
	switch s {
	case WaitingLimit:
		return "waiting_limit"
	case Armed:
		return "armed"
	case Closing:
		return "closing"
	case HedgeLocked:
		return "hedge_locked"
	default:
		return "idle"
	}
}

// Derive reads the named state off a runtime's flags. IsClosing takes
// priority over HedgeTriggered since closing is reachable from
// HedgeLocked via emergency close.
func Derive(rt core.RuntimeState) State {
	switch {
	case rt.IsClosing:
		return Closing
	case rt.HedgeTriggered:
		return HedgeLocked
	case !rt.On:
		return Idle
	case rt.WaitingLimit:
		return WaitingLimit
	default:
		return Armed
	}
}
