package telegram

import (
	"context"

	"github.com/Laisky/zap"
	tb "gopkg.in/telebot.v3"

	"github.com/Laisky/filestream/internal/ingest"
)

func (s *Telegram) registerCallbackHandlers() {
	s.bot.Handle(&s.btnShare, s.onShare, s.answerCallback)
	s.bot.Handle(&s.btnBack, s.onBack, s.answerCallback)
	s.bot.Handle(&s.btnDelete, s.onDelete, s.answerCallback, s.adminOnly)
	s.bot.Handle(&s.btnPlans, func(c tb.Context) error {
		return c.Send(renderPlans(s.ledger.Limits(), s.settings.SupportGroup), htmlOpts(nil))
	}, s.answerCallback)
	s.bot.Handle(&s.btnHelp, func(c tb.Context) error {
		return c.Send(renderHelp(s.ledger.Limits(), s.settings.SupportGroup), htmlOpts(nil))
	}, s.answerCallback)
	s.bot.Handle(&s.btnAbout, func(c tb.Context) error {
		return c.Send(renderAbout(s.settings.BotUsername), htmlOpts(nil))
	}, s.answerCallback)
}

// answerCallback answers every callback query exactly once. A failed
// handler is answered with an alert instead of the empty answer.
func (s *Telegram) answerCallback(next tb.HandlerFunc) tb.HandlerFunc {
	return func(c tb.Context) error {
		err := next(c)
		if c.Callback() == nil {
			return err
		}

		resp := &tb.CallbackResponse{}
		if err != nil {
			resp.Text, resp.ShowAlert = s.callbackAlert(err), true
		}
		if rerr := c.Respond(resp); rerr != nil {
			s.logger.Debug("answer callback", zap.Error(rerr))
		}
		return nil
	}
}

func (s *Telegram) callbackAlert(err error) string {
	if typed, ok := ingest.AsError(err); ok {
		return "❌ " + typed.Message
	}

	s.logger.Error("handle callback", zap.Error(err))
	return "❌ Something went wrong."
}

// onShare switches a ready message to the share view. Links are re-issued
// from the record and equal the ones shown before.
func (s *Telegram) onShare(c tb.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	fileID := c.Data()
	record, issued, err := s.pipeline.Links(ctx, fileID)
	if err != nil {
		return err
	}
	if err = s.pipeline.Access(ctx, fileID); err != nil {
		s.logger.Warn("count file access", zap.String("file_id", fileID), zap.Error(err))
	}

	return c.Edit(renderShare(record, issued), htmlOpts(s.shareMarkup(fileID, issued)))
}

func (s *Telegram) onBack(c tb.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	fileID := c.Data()
	record, issued, err := s.pipeline.Links(ctx, fileID)
	if err != nil {
		return err
	}

	admin := c.Sender() != nil && s.settings.IsAdmin(c.Sender().ID)
	return c.Edit(
		renderReady(record, issued, record.Premium, s.settings.Retention),
		htmlOpts(s.linksMarkup(fileID, issued, admin)),
	)
}

func (s *Telegram) onDelete(c tb.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	fileID := c.Data()
	if err := s.pipeline.Delete(ctx, fileID); err != nil {
		return err
	}

	s.logger.Info("file deleted by admin", zap.String("file_id", fileID), zap.Int64("admin", c.Sender().ID))
	return c.Edit("🗑️ File deleted.")
}
