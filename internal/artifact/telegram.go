package artifact

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/dustin/go-humanize"
	tb "gopkg.in/telebot.v3"
)

// Sender is the part of *tb.Bot the telegram backend needs.
type Sender interface {
	Send(to tb.Recipient, what interface{}, opts ...interface{}) (*tb.Message, error)
	Delete(msg tb.Editable) error
}

// TelegramBackend relays uploads into a private BIN channel by platform file id,
// the content never passes through this process.
type TelegramBackend struct {
	sender  Sender
	channel tb.ChatID
}

// NewTelegramBackend creates a backend storing into channel.
func NewTelegramBackend(sender Sender, channel int64) (*TelegramBackend, error) {
	if sender == nil {
		return nil, errors.New("telegram sender is required")
	}
	if channel == 0 {
		return nil, errors.New("bin channel is required")
	}

	return &TelegramBackend{sender: sender, channel: tb.ChatID(channel)}, nil
}

// Name implements Backend.
func (b *TelegramBackend) Name() string {
	return BackendTelegram
}

// Caption renders the envelope attached to a stored blob.
func Caption(blob Blob, meta Metadata) string {
	return fmt.Sprintf("📁 %s\n📦 %s\n👤 User: %d\n🆔 #ID%d",
		blob.Name, humanize.IBytes(uint64(max(blob.Size, 0))), meta.OwnerUID, meta.OwnerUID)
}

// Put implements Backend.
func (b *TelegramBackend) Put(_ context.Context, blob Blob, meta Metadata) (Reference, error) {
	if blob.SourceID == "" {
		return Reference{}, errors.New("telegram backend needs the platform file id")
	}

	file := tb.File{FileID: blob.SourceID}
	caption := Caption(blob, meta)

	var what interface{}
	switch blob.Kind {
	case KindVideo:
		what = &tb.Video{File: file, FileName: blob.Name, MIME: blob.MIME, Caption: caption}
	case KindAudio:
		what = &tb.Audio{File: file, FileName: blob.Name, MIME: blob.MIME, Caption: caption}
	case KindPhoto:
		what = &tb.Photo{File: file, Caption: caption}
	default:
		what = &tb.Document{File: file, FileName: blob.Name, MIME: blob.MIME, Caption: caption}
	}

	msg, err := b.sender.Send(b.channel, what)
	if err != nil {
		return Reference{}, errors.Wrap(err, "relay to bin channel")
	}
	if msg == nil || msg.ID == 0 {
		return Reference{}, errors.New("bin channel returned no message")
	}

	return Reference{
		FileID:  strconv.Itoa(msg.ID),
		Locator: fmt.Sprintf("%d:%d", int64(b.channel), msg.ID),
	}, nil
}

// Remove implements Backend.
func (b *TelegramBackend) Remove(_ context.Context, ref Reference) error {
	chatID, msgID, ok := strings.Cut(ref.Locator, ":")
	if !ok || msgID == "" {
		return errors.Wrapf(ErrInvalidReference, "locator %q", ref.Locator)
	}
	chat, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return errors.Wrapf(ErrInvalidReference, "locator %q", ref.Locator)
	}

	if err = b.sender.Delete(tb.StoredMessage{MessageID: msgID, ChatID: chat}); err != nil {
		return errors.Wrapf(err, "delete message %s", ref.Locator)
	}

	return nil
}

// IsNotExist implements Backend.
func (b *TelegramBackend) IsNotExist(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, tb.ErrNotFoundToDelete) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "message to delete not found")
}
