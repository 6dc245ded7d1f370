package artifact

import (
	"context"
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"
	tb "gopkg.in/telebot.v3"
)

type stubSender struct {
	sent      []interface{}
	to        []tb.Recipient
	deleted   []tb.Editable
	sendErr   error
	deleteErr error
	nextID    int
}

func (s *stubSender) Send(to tb.Recipient, what interface{}, _ ...interface{}) (*tb.Message, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	s.nextID++
	s.to = append(s.to, to)
	s.sent = append(s.sent, what)
	return &tb.Message{ID: s.nextID}, nil
}

func (s *stubSender) Delete(msg tb.Editable) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, msg)
	return nil
}

func TestTelegramBackendPutRelaysByFileID(t *testing.T) {
	sender := &stubSender{nextID: 99}
	b, err := NewTelegramBackend(sender, -1001)
	require.NoError(t, err)

	ref, err := b.Put(context.Background(), Blob{
		Kind:     KindVideo,
		SourceID: "BAACAg",
		Name:     "clip.mp4",
		MIME:     "video/mp4",
		Size:     1024,
	}, Metadata{OwnerUID: 42})
	require.NoError(t, err)
	require.Equal(t, Reference{FileID: "100", Locator: "-1001:100"}, ref)

	require.Len(t, sender.sent, 1)
	require.Equal(t, "-1001", sender.to[0].Recipient())
	video, ok := sender.sent[0].(*tb.Video)
	require.True(t, ok)
	require.Equal(t, "BAACAg", video.FileID)
	require.Equal(t, "📁 clip.mp4\n📦 1.0 KiB\n👤 User: 42\n🆔 #ID42", video.Caption)
}

func TestTelegramBackendPutKinds(t *testing.T) {
	sender := &stubSender{}
	b, err := NewTelegramBackend(sender, 7)
	require.NoError(t, err)
	ctx := context.Background()

	for _, kind := range []Kind{KindDocument, KindAudio, KindPhoto, ""} {
		_, err = b.Put(ctx, Blob{Kind: kind, SourceID: "x", Name: "n"}, Metadata{})
		require.NoError(t, err)
	}

	require.IsType(t, &tb.Document{}, sender.sent[0])
	require.IsType(t, &tb.Audio{}, sender.sent[1])
	require.IsType(t, &tb.Photo{}, sender.sent[2])
	require.IsType(t, &tb.Document{}, sender.sent[3])

	_, err = b.Put(ctx, Blob{Kind: KindDocument}, Metadata{})
	require.Error(t, err)
}

func TestTelegramBackendRemove(t *testing.T) {
	sender := &stubSender{}
	b, err := NewTelegramBackend(sender, 7)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.Remove(ctx, Reference{FileID: "5", Locator: "-1001:5"}))
	require.Len(t, sender.deleted, 1)
	msgID, chatID := sender.deleted[0].MessageSig()
	require.Equal(t, "5", msgID)
	require.Equal(t, int64(-1001), chatID)

	require.ErrorIs(t, b.Remove(ctx, Reference{FileID: "5", Locator: "garbage"}), ErrInvalidReference)
	require.ErrorIs(t, b.Remove(ctx, Reference{FileID: "5", Locator: "x:5"}), ErrInvalidReference)
}

func TestTelegramBackendIsNotExist(t *testing.T) {
	b := &TelegramBackend{}
	require.True(t, b.IsNotExist(errors.Wrap(tb.ErrNotFoundToDelete, "delete")))
	require.True(t, b.IsNotExist(errors.New("telegram: Bad Request: message to delete not found (400)")))
	require.False(t, b.IsNotExist(errors.New("telegram: Forbidden")))
	require.False(t, b.IsNotExist(nil))
}

func TestNewTelegramBackendValidates(t *testing.T) {
	_, err := NewTelegramBackend(nil, 1)
	require.Error(t, err)
	_, err = NewTelegramBackend(&stubSender{}, 0)
	require.Error(t, err)
}
