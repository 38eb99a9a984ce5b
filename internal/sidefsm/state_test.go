package sidefsm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hedgegrid/internal/core"
)

func TestDerive(t *testing.T) {
	rt := core.NewRuntimeState()
	require.Equal(t, Idle, Derive(rt))

	rt.On = true
	rt.WaitingLimit = true
	require.Equal(t, WaitingLimit, Derive(rt))

	rt.WaitingLimit = false
	require.Equal(t, Armed, Derive(rt))

	rt.HedgeTriggered = true
	require.Equal(t, HedgeLocked, Derive(rt))

	rt.IsClosing = true
	require.Equal(t, Closing, Derive(rt))
}
