package telegram

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStartPayload(t *testing.T) {
	cases := []struct {
		payload string
		action  startAction
		uid     int64
	}{
		{"", startWelcome, 0},
		{"hello", startWelcome, 0},
		{"plans", startPlans, 0},
		{" plans ", startPlans, 0},
		{"verify_12345", startVerify, 12345},
		{"verify_", startVerify, 0},
		{"verify_abc", startVerify, 0},
	}

	for _, tc := range cases {
		action, uid := parseStartPayload(tc.payload)
		require.Equal(t, tc.action, action, tc.payload)
		require.Equal(t, tc.uid, uid, tc.payload)
	}
}

func TestRenderAbout(t *testing.T) {
	text := renderAbout("<bot>")
	require.Contains(t, text, "About &lt;bot&gt;")
	require.Contains(t, text, "Embed player support")
}
