package telegram

import (
	"context"
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	tb "gopkg.in/telebot.v3"
)

const myFilesLimit = 10

type startAction int

const (
	startWelcome startAction = iota
	startPlans
	startVerify
)

const verifyPayloadPrefix = "verify_"

// parseStartPayload decodes the deep link payload of /start.
// A malformed verify payload yields uid 0, which matches no sender.
func parseStartPayload(payload string) (startAction, int64) {
	payload = strings.TrimSpace(payload)
	switch {
	case payload == "plans":
		return startPlans, 0
	case strings.HasPrefix(payload, verifyPayloadPrefix):
		uid, err := strconv.ParseInt(strings.TrimPrefix(payload, verifyPayloadPrefix), 10, 64)
		if err != nil {
			return startVerify, 0
		}
		return startVerify, uid
	default:
		return startWelcome, 0
	}
}

func (s *Telegram) registerCommandHandlers() {
	s.bot.Handle("/start", s.onStart)
	s.bot.Handle("/plans", func(c tb.Context) error {
		return c.Send(renderPlans(s.ledger.Limits(), s.settings.SupportGroup), htmlOpts(nil))
	})
	s.bot.Handle("/help", func(c tb.Context) error {
		return c.Send(renderHelp(s.ledger.Limits(), s.settings.SupportGroup), htmlOpts(nil))
	})
	s.bot.Handle("/myfiles", s.onMyFiles)
	s.bot.Handle("/usage", s.onUsage)
}

func (s *Telegram) onStart(c tb.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	user, err := s.ledger.Register(ctx, sender.ID)
	if err != nil {
		return errors.Wrapf(err, "register user %d", sender.ID)
	}
	// a fresh registration is the only write where both timestamps match
	if user.CreatedAt.Equal(user.LastActiveAt) {
		if err = s.notifier.NotifyNewUser(ctx, sender); err != nil {
			s.logger.Warn("notify new user", zap.Int64("uid", sender.ID), zap.Error(err))
		}
	}

	switch action, uid := parseStartPayload(c.Message().Payload); action {
	case startPlans:
		return c.Reply(renderPlans(s.ledger.Limits(), s.settings.SupportGroup), htmlOpts(nil))
	case startVerify:
		if uid == 0 || uid != sender.ID {
			return c.Reply("❌ Invalid verification link!")
		}
		if err = s.ledger.Verify(ctx, uid); err != nil {
			return errors.Wrapf(err, "verify user %d", uid)
		}
		return c.Reply("✅ You are now verified!")
	}

	markup := &tb.ReplyMarkup{}
	var rows []tb.Row
	var links []tb.Btn
	if s.settings.UpdatesChannel != "" {
		links = append(links, markup.URL("📢 Updates", "https://t.me/"+s.settings.UpdatesChannel))
	}
	if s.settings.SupportGroup != "" {
		links = append(links, markup.URL("💬 Support", "https://t.me/"+s.settings.SupportGroup))
	}
	if len(links) > 0 {
		rows = append(rows, markup.Row(links...))
	}
	rows = append(rows, markup.Row(s.btnPlans, s.btnAbout), markup.Row(s.btnHelp))
	markup.Inline(rows...)

	return c.Send(renderStart(sender.FirstName, s.settings.BotUsername, s.ledger.Limits()), htmlOpts(markup))
}

func (s *Telegram) onMyFiles(c tb.Context) error {
	if c.Sender() == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	records, err := s.pipeline.UserFiles(ctx, c.Sender().ID, myFilesLimit)
	if err != nil {
		return errors.Wrap(err, "list user files")
	}

	return c.Send(renderFileList(records), htmlOpts(nil))
}

func (s *Telegram) onUsage(c tb.Context) error {
	if c.Sender() == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	uid := c.Sender().ID
	premium, err := s.ledger.IsPremium(ctx, uid)
	if err != nil {
		return errors.Wrap(err, "check premium")
	}
	usage, err := s.ledger.DailyUsage(ctx, uid)
	if err != nil {
		return errors.Wrap(err, "load usage")
	}

	return c.Send(renderUsage(premium, usage, s.ledger.Limits()), htmlOpts(nil))
}
