package telegram

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/Laisky/zap"
	tb "gopkg.in/telebot.v3"

	"github.com/Laisky/filestream/internal/artifact"
	"github.com/Laisky/filestream/internal/ingest"
	"github.com/Laisky/filestream/internal/links"
)

func (s *Telegram) registerUploadHandlers() {
	for _, endpoint := range []string{tb.OnDocument, tb.OnVideo, tb.OnAudio, tb.OnPhoto} {
		s.bot.Handle(endpoint, s.onUpload, s.throttled)
	}
}

// throttled drops uploads of users sending faster than the configured rate.
func (s *Telegram) throttled(next tb.HandlerFunc) tb.HandlerFunc {
	return func(c tb.Context) error {
		if s.throttle == nil || c.Sender() == nil || s.throttle.Allow(c.Sender().ID) {
			return next(c)
		}

		s.logger.Info("upload throttled", zap.Int64("uid", c.Sender().ID))
		return c.Reply("⏳ Too many uploads, please slow down.")
	}
}

// blobFromMessage extracts the uploaded media of m.
func blobFromMessage(m *tb.Message) (artifact.Blob, bool) {
	if m == nil {
		return artifact.Blob{}, false
	}

	var blob artifact.Blob
	switch {
	case m.Document != nil:
		blob = artifact.Blob{
			Kind:     artifact.KindDocument,
			SourceID: m.Document.FileID,
			Name:     m.Document.FileName,
			MIME:     m.Document.MIME,
			Size:     m.Document.FileSize,
		}
	case m.Video != nil:
		blob = artifact.Blob{
			Kind:     artifact.KindVideo,
			SourceID: m.Video.FileID,
			Name:     m.Video.FileName,
			MIME:     m.Video.MIME,
			Size:     m.Video.FileSize,
		}
		if blob.MIME == "" {
			blob.MIME = "video/mp4"
		}
	case m.Audio != nil:
		blob = artifact.Blob{
			Kind:     artifact.KindAudio,
			SourceID: m.Audio.FileID,
			Name:     m.Audio.FileName,
			MIME:     m.Audio.MIME,
			Size:     m.Audio.FileSize,
		}
	case m.Photo != nil:
		blob = artifact.Blob{
			Kind:     artifact.KindPhoto,
			SourceID: m.Photo.FileID,
			MIME:     "image/jpeg",
			Size:     m.Photo.FileSize,
		}
	default:
		return artifact.Blob{}, false
	}

	if blob.Name == "" {
		blob.Name = fmt.Sprintf("file_%d%s", m.ID, defaultExt(blob.Kind))
	}
	blob.Name = path.Base(blob.Name)
	return blob, blob.SourceID != ""
}

func defaultExt(kind artifact.Kind) string {
	switch kind {
	case artifact.KindVideo:
		return ".mp4"
	case artifact.KindAudio:
		return ".mp3"
	case artifact.KindPhoto:
		return ".jpg"
	default:
		return ""
	}
}

// opener downloads the content through the bot api, only byte oriented
// backends call it.
func (s *Telegram) opener(fileID string) func(context.Context) (io.ReadCloser, error) {
	return func(context.Context) (io.ReadCloser, error) {
		return s.bot.File(&tb.File{FileID: fileID})
	}
}

func (s *Telegram) onUpload(c tb.Context) error {
	m := c.Message()
	blob, ok := blobFromMessage(m)
	if !ok || c.Sender() == nil {
		return nil
	}
	blob.Open = s.opener(blob.SourceID)

	uid := c.Sender().ID
	logger := s.logger.With(zap.Int64("uid", uid), zap.String("name", blob.Name))
	if err := c.Notify(tb.Typing); err != nil {
		logger.Debug("send chat action", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.settings.UploadTimeout)
	defer cancel()

	res, err := s.pipeline.Ingest(ctx, ingest.Upload{UID: uid, Blob: blob})
	if err != nil {
		return s.replyIngestError(c, err)
	}

	return c.Reply(
		renderReady(res.Record, res.Links, res.Premium, s.settings.Retention),
		htmlOpts(s.linksMarkup(res.Record.FileID, res.Links, s.settings.IsAdmin(uid))),
	)
}

func (s *Telegram) replyIngestError(c tb.Context, err error) error {
	typed, ok := ingest.AsError(err)
	if !ok {
		s.logger.Error("untyped ingestion error", zap.Error(err))
		return c.Reply("❌ Error processing your file.")
	}

	var markup *tb.ReplyMarkup
	switch typed.Code {
	case ingest.ErrCodeSizeExceeded, ingest.ErrCodeDailyLimitExceeded:
		markup = &tb.ReplyMarkup{}
		markup.Inline(markup.Row(s.btnPlans))
	}

	return c.Reply("❌ "+typed.Message, &tb.SendOptions{ReplyMarkup: markup})
}

// linksMarkup is the keyboard under a ready file.
func (s *Telegram) linksMarkup(fileID string, l links.Links, admin bool) *tb.ReplyMarkup {
	markup := &tb.ReplyMarkup{}
	rows := []tb.Row{markup.Row(markup.URL("📥 Direct Download", l.Direct))}
	if l.Embed != "" {
		rows = append(rows, markup.Row(markup.URL("📺 Embed Player", l.Embed)))
	}
	rows = append(rows,
		markup.Row(markup.URL("🎥 Stream Online", l.Stream)),
		markup.Row(markup.Data(s.btnShare.Text, s.btnShare.Unique, fileID)),
	)
	if admin {
		rows = append(rows, markup.Row(markup.Data(s.btnDelete.Text, s.btnDelete.Unique, fileID)))
	}

	markup.Inline(rows...)
	return markup
}

// shareMarkup is the keyboard of the share view.
func (s *Telegram) shareMarkup(fileID string, l links.Links) *tb.ReplyMarkup {
	markup := &tb.ReplyMarkup{}
	rows := []tb.Row{
		markup.Row(markup.URL("📥 Direct", l.Direct)),
		markup.Row(markup.URL("🎥 Stream", l.Stream)),
	}
	if l.Embed != "" {
		rows = append(rows, markup.Row(markup.URL("📺 Embed", l.Embed)))
	}
	rows = append(rows, markup.Row(markup.Data(s.btnBack.Text, s.btnBack.Unique, fileID)))

	markup.Inline(rows...)
	return markup
}
