package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/filestream/internal/files"
	"github.com/Laisky/filestream/internal/ingest"
	"github.com/Laisky/filestream/internal/links"
	"github.com/Laisky/filestream/internal/quota"
)

var testLimits = quota.Limits{
	Free:    quota.TierLimits{MaxFileSize: 1 << 30, DailyLimit: 5},
	Premium: quota.TierLimits{MaxFileSize: 4 << 30, DailyLimit: 50},
}

func TestRenderRetention(t *testing.T) {
	require.Equal(t, "never", renderRetention(0))
	require.Equal(t, "12 hours", renderRetention(12*time.Hour))
	require.Equal(t, "1m30s", renderRetention(90*time.Second))
}

func TestRenderReady(t *testing.T) {
	r := &files.Record{FileID: "1", FileName: "<b>x</b>.mp4", FileSize: 1024}
	l := links.Links{
		Direct: "https://dl/file/1?filename=a&b",
		Stream: "https://s/stream/1",
		Embed:  "https://s/embed/1",
	}

	text := renderReady(r, l, true, 12*time.Hour)
	require.Contains(t, text, "&lt;b&gt;x&lt;/b&gt;.mp4")
	require.Contains(t, text, "1.0 KiB")
	require.Contains(t, text, "12 hours")
	require.Contains(t, text, "💎 Premium")
	require.Contains(t, text, "filename=a&amp;b")
	require.Contains(t, text, "Embed Link")

	l.Embed = ""
	text = renderReady(r, l, false, 0)
	require.NotContains(t, text, "Embed Link")
	require.Contains(t, text, "never")
	require.Contains(t, text, "🎫 Free")
}

func TestRenderShareWithoutEmbed(t *testing.T) {
	text := renderShare(&files.Record{FileName: "a.pdf"}, links.Links{Direct: "d", Stream: "s"})
	require.Contains(t, text, "N/A")
}

func TestRenderPlansAndHelp(t *testing.T) {
	text := renderPlans(testLimits, "support")
	require.Contains(t, text, "1.0 GiB")
	require.Contains(t, text, "4.0 GiB")
	require.Contains(t, text, "5 files per day")
	require.Contains(t, text, "50 files per day")
	require.Contains(t, text, "@support")

	require.NotContains(t, renderPlans(testLimits, ""), "Contact")
	require.Contains(t, renderHelp(testLimits, ""), "4.0 GiB")
	require.Contains(t, renderStart("<Ann>", "Bot", testLimits), "&lt;Ann&gt;")
}

func TestRenderFileList(t *testing.T) {
	require.Equal(t, "📂 You have no stored files.", renderFileList(nil))

	text := renderFileList([]*files.Record{
		{FileName: "a.txt", FileSize: 1, Links: links.Links{Stream: "https://s/stream/1"}},
		{FileName: "b.txt", FileSize: 2, Links: links.Links{Stream: "https://s/stream/2"}},
	})
	require.Contains(t, text, "1. <code>a.txt</code>")
	require.Contains(t, text, "2. <code>b.txt</code>")
	require.Contains(t, text, "https://s/stream/2")
}

func TestRenderStatsAndUsage(t *testing.T) {
	text := renderStats(ingest.Stats{
		Users:            quota.Stats{TotalUsers: 3, PremiumUsers: 1},
		Files:            9,
		PendingDeletions: 2,
	})
	require.Contains(t, text, "Total users: 3")
	require.Contains(t, text, "Premium users: 1")
	require.Contains(t, text, "Stored files: 9")
	require.Contains(t, text, "Pending deletions: 2")

	require.Equal(t, "🎫 Free plan, 2/5 uploads today, up to 1.0 GiB per file",
		renderUsage(false, 2, testLimits))
	require.Equal(t, "💎 Premium plan, 0/50 uploads today, up to 4.0 GiB per file",
		renderUsage(true, 0, testLimits))
}
