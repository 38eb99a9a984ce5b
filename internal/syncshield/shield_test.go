package syncshield

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInFlight(t *testing.T) {
	now := time.Now()
	sentTS := float64(now.Add(-2*time.Second).UnixNano()) / float64(time.Second)
	require.True(t, InFlight(sentTS, now))

	staleTS := float64(now.Add(-10*time.Second).UnixNano()) / float64(time.Second)
	require.False(t, InFlight(staleTS, now))

	require.False(t, InFlight(0, now))
}
