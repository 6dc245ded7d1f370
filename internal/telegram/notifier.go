package telegram

import (
	"context"
	"fmt"
	"html"

	"github.com/Laisky/errors/v2"
	tb "gopkg.in/telebot.v3"

	"github.com/Laisky/filestream/internal/ingest"
)

type messageSender interface {
	Send(to tb.Recipient, what interface{}, opts ...interface{}) (*tb.Message, error)
}

// LogNotifier posts events into the log channel. A zero channel disables it.
type LogNotifier struct {
	sender  messageSender
	channel int64
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(sender messageSender, channel int64) *LogNotifier {
	return &LogNotifier{sender: sender, channel: channel}
}

func (n *LogNotifier) send(ctx context.Context, text string) error {
	if n == nil || n.sender == nil || n.channel == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "send to log channel")
	}

	if _, err := n.sender.Send(tb.ChatID(n.channel), text, &tb.SendOptions{
		ParseMode:             tb.ModeHTML,
		DisableWebPagePreview: true,
	}); err != nil {
		return errors.Wrap(err, "send to log channel")
	}
	return nil
}

func mention(uid int64, name string) string {
	if name == "" {
		name = fmt.Sprint(uid)
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, uid, html.EscapeString(name))
}

// NotifyIngested implements ingest.Notifier.
func (n *LogNotifier) NotifyIngested(ctx context.Context, up ingest.Upload, res *ingest.Result) error {
	return n.send(ctx, fmt.Sprintf("#NEW_FILE:\n\nUser: %s\nFile: %s\nSize: %s\nPremium: %t\nID: <code>%s</code>",
		mention(up.UID, ""), html.EscapeString(up.Blob.Name), humanSize(up.Blob.Size), res.Premium, res.FileID))
}

// NotifyNewUser announces a first /start.
func (n *LogNotifier) NotifyNewUser(ctx context.Context, user *tb.User) error {
	return n.send(ctx, fmt.Sprintf("#NEW_USER:\n\nNew user %s started!", mention(user.ID, user.FirstName)))
}
