package telegram

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	tb "gopkg.in/telebot.v3"
)

func (s *Telegram) registerAdminHandlers() {
	admin := s.bot.Group()
	admin.Use(s.adminOnly)

	admin.Handle("/stats", s.onStats)
	admin.Handle("/ban", s.onBan)
	admin.Handle("/unban", s.onUnban)
	admin.Handle("/premium", s.onPremium)
	admin.Handle("/unpremium", s.onUnpremium)
}

// adminOnly silently drops updates from non admins.
func (s *Telegram) adminOnly(next tb.HandlerFunc) tb.HandlerFunc {
	return func(c tb.Context) error {
		if c.Sender() == nil || !s.settings.IsAdmin(c.Sender().ID) {
			s.logger.Debug("ignore admin update from non admin")
			return nil
		}
		return next(c)
	}
}

func parseUIDArg(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, errors.New("user id is required")
	}
	uid, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || uid == 0 {
		return 0, errors.Errorf("invalid user id %q", args[0])
	}
	return uid, nil
}

func parsePremiumArgs(args []string) (uid int64, days int, err error) {
	if len(args) != 2 {
		return 0, 0, errors.New("usage: /premium <user_id> <days>")
	}
	if uid, err = parseUIDArg(args); err != nil {
		return 0, 0, err
	}
	if days, err = strconv.Atoi(args[1]); err != nil || days <= 0 {
		return 0, 0, errors.Errorf("invalid days %q", args[1])
	}
	return uid, days, nil
}

func (s *Telegram) onStats(c tb.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	stats, err := s.pipeline.Stats(ctx)
	if err != nil {
		return errors.Wrap(err, "load stats")
	}
	return c.Send(renderStats(stats), htmlOpts(nil))
}

// userCommand runs fn on the uid given as first argument and replies done.
func (s *Telegram) userCommand(c tb.Context, action string, fn func(ctx context.Context, uid int64) error) error {
	uid, err := parseUIDArg(c.Args())
	if err != nil {
		return c.Send("❌ " + err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err = fn(ctx, uid); err != nil {
		s.logger.Error("admin command", zap.String("action", action), zap.Int64("uid", uid), zap.Error(err))
		return c.Send(fmt.Sprintf("❌ Failed to %s user %d.", action, uid))
	}

	s.logger.Info("admin command",
		zap.String("action", action),
		zap.Int64("uid", uid),
		zap.Int64("admin", c.Sender().ID))
	return c.Send(fmt.Sprintf("✅ Done: %s user %d.", action, uid))
}

func (s *Telegram) onBan(c tb.Context) error {
	return s.userCommand(c, "ban", s.ledger.Ban)
}

func (s *Telegram) onUnban(c tb.Context) error {
	return s.userCommand(c, "unban", s.ledger.Unban)
}

func (s *Telegram) onUnpremium(c tb.Context) error {
	return s.userCommand(c, "revoke premium of", s.ledger.RevokePremium)
}

func (s *Telegram) onPremium(c tb.Context) error {
	uid, days, err := parsePremiumArgs(c.Args())
	if err != nil {
		return c.Send("❌ " + err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err = s.ledger.GrantPremium(ctx, uid, days); err != nil {
		return errors.Wrapf(err, "grant premium to %d", uid)
	}

	if _, err = s.bot.Send(tb.ChatID(uid), fmt.Sprintf("🎉 You are now premium for %d days!", days)); err != nil {
		s.logger.Warn("notify premium user", zap.Int64("uid", uid), zap.Error(err))
	}
	return c.Send(fmt.Sprintf("✅ User %d is premium for %d days.", uid, days))
}
