package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Laisky/filestream/internal/files"
	"github.com/Laisky/filestream/internal/ingest"
	"github.com/Laisky/filestream/internal/links"
	"github.com/Laisky/filestream/internal/quota"
)

func humanSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func renderRetention(d time.Duration) string {
	if d <= 0 {
		return "never"
	}
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int64(d/time.Hour))
	}
	return d.String()
}

func renderTier(premium bool) string {
	if premium {
		return "💎 Premium"
	}
	return "🎫 Free"
}

// renderReady is the message shown under a ready file.
func renderReady(r *files.Record, l links.Links, premium bool, retention time.Duration) string {
	var b strings.Builder
	b.WriteString("<b>✅ File Ready!</b>\n\n")
	fmt.Fprintf(&b, "<b>📁 File:</b> <code>%s</code>\n", html.EscapeString(r.FileName))
	fmt.Fprintf(&b, "<b>📦 Size:</b> %s\n", humanSize(r.FileSize))
	fmt.Fprintf(&b, "<b>⏰ Auto-delete:</b> %s\n", renderRetention(retention))
	fmt.Fprintf(&b, "<b>👤 Status:</b> %s\n\n", renderTier(premium))
	fmt.Fprintf(&b, "<b>🔗 Direct Download:</b>\n<code>%s</code>\n\n", html.EscapeString(l.Direct))
	fmt.Fprintf(&b, "<b>🎬 Stream Link:</b>\n<code>%s</code>", html.EscapeString(l.Stream))
	if l.Embed != "" {
		fmt.Fprintf(&b, "\n\n<b>📺 Embed Link:</b>\n<code>%s</code>", html.EscapeString(l.Embed))
	}
	return b.String()
}

// renderShare is the share submenu.
func renderShare(r *files.Record, l links.Links) string {
	embed := l.Embed
	if embed == "" {
		embed = "N/A"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>🔗 Share Links for %s</b>\n\n", html.EscapeString(r.FileName))
	fmt.Fprintf(&b, "<b>📥 Direct Download:</b>\n<code>%s</code>\n\n", html.EscapeString(l.Direct))
	fmt.Fprintf(&b, "<b>🎥 Stream Link:</b>\n<code>%s</code>\n\n", html.EscapeString(l.Stream))
	fmt.Fprintf(&b, "<b>📺 Embed Link:</b>\n<code>%s</code>", html.EscapeString(embed))
	return b.String()
}

func renderStart(name, botUsername string, limits quota.Limits) string {
	return fmt.Sprintf("👋 Hello %s,\n\n🤖 <b>Welcome to %s!</b>\n\n"+
		"I turn your files into shareable links.\n\n"+
		"<b>✨ Features:</b>\n"+
		"✅ Free: files up to %s\n"+
		"✅ Premium: files up to %s\n"+
		"✅ Direct download links\n"+
		"✅ Streaming links\n"+
		"✅ Embed player for videos\n"+
		"✅ Auto cleanup\n\n"+
		"<b>📤 Just send me any file to get started!</b>",
		html.EscapeString(name), html.EscapeString(botUsername),
		humanSize(limits.Free.MaxFileSize), humanSize(limits.Premium.MaxFileSize))
}

func renderAbout(botUsername string) string {
	return fmt.Sprintf("🤖 <b>About %s</b>\n\n"+
		"<b>🚀 Features:</b>\n"+
		"• Direct download links\n"+
		"• Streaming links\n"+
		"• Embed player support\n"+
		"• Premium plans\n"+
		"• Auto cleanup\n"+
		"• Usage statistics",
		html.EscapeString(botUsername))
}

func renderPlans(limits quota.Limits, supportGroup string) string {
	text := fmt.Sprintf("💎 <b>Premium Plans</b>\n\n"+
		"<b>✨ Free Plan:</b>\n• %s file size limit\n• %d files per day\n\n"+
		"<b>💎 Premium Plan:</b>\n• %s file size limit\n• %d files per day\n• Priority support",
		humanSize(limits.Free.MaxFileSize), limits.Free.DailyLimit,
		humanSize(limits.Premium.MaxFileSize), limits.Premium.DailyLimit)
	if supportGroup != "" {
		text += fmt.Sprintf("\n\n<b>Contact @%s for premium upgrades!</b>", html.EscapeString(supportGroup))
	}
	return text
}

func renderHelp(limits quota.Limits, supportGroup string) string {
	text := fmt.Sprintf("📖 <b>How to Use</b>\n\n"+
		"1. <b>Send any file</b> (document, video, audio, photo)\n"+
		"2. <b>Get your links</b> (direct download, stream, embed for videos)\n"+
		"3. <b>Share the links</b> with anyone\n\n"+
		"Files up to %s are accepted on the premium plan.\n\n"+
		"<b>⚡ Commands:</b>\n"+
		"/start - Start the bot\n"+
		"/plans - Show the plans\n"+
		"/myfiles - Your recent files\n"+
		"/help - This message",
		humanSize(limits.Premium.MaxFileSize))
	if supportGroup != "" {
		text += fmt.Sprintf("\n\n<b>Need help?</b> Join @%s", html.EscapeString(supportGroup))
	}
	return text
}

func renderFileList(records []*files.Record) string {
	if len(records) == 0 {
		return "📂 You have no stored files."
	}

	var b strings.Builder
	b.WriteString("📂 <b>Your recent files</b>\n")
	for i, r := range records {
		fmt.Fprintf(&b, "\n%d. <code>%s</code> (%s)\n%s",
			i+1, html.EscapeString(r.FileName), humanSize(r.FileSize), html.EscapeString(r.Links.Stream))
	}
	return b.String()
}

func renderStats(stats ingest.Stats) string {
	return fmt.Sprintf("📊 <b>Bot Statistics:</b>\n\n"+
		"👥 Total users: %d\n"+
		"💎 Premium users: %d\n"+
		"📁 Stored files: %d\n"+
		"⏳ Pending deletions: %d",
		stats.Users.TotalUsers, stats.Users.PremiumUsers, stats.Files, stats.PendingDeletions)
}

func renderUsage(premium bool, usage int, limits quota.Limits) string {
	tier := limits.Free
	if premium {
		tier = limits.Premium
	}
	return fmt.Sprintf("%s plan, %d/%d uploads today, up to %s per file",
		renderTier(premium), usage, tier.DailyLimit, humanSize(tier.MaxFileSize))
}
