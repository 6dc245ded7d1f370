package throttle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewValidatesCfg(t *testing.T) {
	_, err := New(Cfg{TotalNPerSec: 0, TotalBurst: 1, EachKeyNPerSec: 1, EachKeyBurst: 1})
	require.Error(t, err)

	_, err = New(Cfg{TotalNPerSec: 5, TotalBurst: 1, EachKeyNPerSec: 1, EachKeyBurst: 1})
	require.Error(t, err)

	_, err = New(Cfg{TotalNPerSec: 5, TotalBurst: 10, EachKeyNPerSec: 1, EachKeyBurst: 2})
	require.NoError(t, err)
}

func TestAllowPerKey(t *testing.T) {
	th, err := New(Cfg{TotalNPerSec: 100, TotalBurst: 100, EachKeyNPerSec: 1, EachKeyBurst: 2})
	require.NoError(t, err)

	require.True(t, th.Allow(1))
	require.True(t, th.Allow(1))
	require.False(t, th.Allow(1))

	// other keys keep their own bucket
	require.True(t, th.Allow(2))
}

func TestAllowTotal(t *testing.T) {
	th, err := New(Cfg{TotalNPerSec: 1, TotalBurst: 3, EachKeyNPerSec: 1, EachKeyBurst: 1})
	require.NoError(t, err)

	for key := int64(1); key <= 3; key++ {
		require.True(t, th.Allow(key))
	}
	require.False(t, th.Allow(4))
}
