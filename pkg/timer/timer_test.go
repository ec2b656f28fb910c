package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestArmDisarm(t *testing.T) {
	var tm Timer
	require.False(t, tm.Armed())
	require.False(t, tm.Expired())
	require.Equal(t, time.Duration(0), tm.Remaining())

	tm.Arm(50 * time.Millisecond)
	require.True(t, tm.Armed())
	require.False(t, tm.Expired())
	require.Greater(t, tm.Remaining(), time.Duration(0))

	tm.Disarm()
	require.False(t, tm.Armed())
	require.False(t, tm.Expired())
}

func TestExpires(t *testing.T) {
	var tm Timer
	tm.Arm(5 * time.Millisecond)
	require.Eventually(t, tm.Expired, 200*time.Millisecond, time.Millisecond)
	require.Equal(t, time.Duration(0), tm.Remaining())
}
