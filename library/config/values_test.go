package config

import (
	"testing"

	gconfig "github.com/Laisky/go-config/v2"
	"github.com/stretchr/testify/require"
)

func TestValues(t *testing.T) {
	gconfig.S.Set("test.values.int", 5)
	gconfig.S.Set("test.values.str_int", " 42 ")
	gconfig.S.Set("test.values.bool", "true")
	gconfig.S.Set("test.values.str", "  hello ")
	t.Cleanup(func() {
		gconfig.S.Set("test.values.int", nil)
		gconfig.S.Set("test.values.str_int", nil)
		gconfig.S.Set("test.values.bool", nil)
		gconfig.S.Set("test.values.str", nil)
	})

	require.Equal(t, 5, Int("test.values.int", 1))
	require.Equal(t, int64(42), Int64("test.values.str_int", 1))
	require.Equal(t, 7, Int("test.values.missing", 7))
	require.True(t, Bool("test.values.bool", false))
	require.True(t, Bool("test.values.missing", true))
	require.Equal(t, "hello", String("test.values.str", "x"))
	require.Equal(t, "x", String("test.values.missing", "x"))
}

func TestInt64Slice(t *testing.T) {
	gconfig.S.Set("test.admins.csv", "1, 2,3")
	gconfig.S.Set("test.admins.list", []any{10, "11"})
	gconfig.S.Set("test.admins.bad", "1,abc")
	t.Cleanup(func() {
		gconfig.S.Set("test.admins.csv", nil)
		gconfig.S.Set("test.admins.list", nil)
		gconfig.S.Set("test.admins.bad", nil)
	})

	ids, err := Int64Slice("test.admins.csv")
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, ids)

	ids, err = Int64Slice("test.admins.list")
	require.NoError(t, err)
	require.Equal(t, []int64{10, 11}, ids)

	_, err = Int64Slice("test.admins.bad")
	require.Error(t, err)

	ids, err = Int64Slice("test.admins.missing")
	require.NoError(t, err)
	require.Empty(t, ids)
}
