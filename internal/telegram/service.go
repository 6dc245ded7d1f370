// Package telegram is the chat transport of the bot. It maps telebot updates
// to pipeline calls and renders the replies.
package telegram

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	tb "gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/middleware"

	"github.com/Laisky/filestream/internal/files"
	"github.com/Laisky/filestream/internal/ingest"
	"github.com/Laisky/filestream/internal/links"
	"github.com/Laisky/filestream/internal/quota"
	"github.com/Laisky/filestream/library/log"
	"github.com/Laisky/filestream/library/throttle"
)

// Pipeline is what the transport drives.
type Pipeline interface {
	Ingest(ctx context.Context, up ingest.Upload) (*ingest.Result, error)
	Links(ctx context.Context, fileID string) (*files.Record, links.Links, error)
	Access(ctx context.Context, fileID string) error
	Delete(ctx context.Context, fileID string) error
	UserFiles(ctx context.Context, uid int64, limit int) ([]*files.Record, error)
	Stats(ctx context.Context) (ingest.Stats, error)
}

// Ledger is the quota surface used by commands.
type Ledger interface {
	Register(ctx context.Context, uid int64) (*quota.User, error)
	Ban(ctx context.Context, uid int64) error
	Unban(ctx context.Context, uid int64) error
	Verify(ctx context.Context, uid int64) error
	GrantPremium(ctx context.Context, uid int64, days int) error
	RevokePremium(ctx context.Context, uid int64) error
	IsPremium(ctx context.Context, uid int64) (bool, error)
	DailyUsage(ctx context.Context, uid int64) (int, error)
	Limits() quota.Limits
}

const commandTimeout = 30 * time.Second

// Telegram serves bot updates.
type Telegram struct {
	bot      *tb.Bot
	pipeline Pipeline
	ledger   Ledger
	notifier *LogNotifier
	settings Settings
	logger   logSDK.Logger
	throttle *throttle.Throttle

	btnShare  tb.Btn
	btnBack   tb.Btn
	btnDelete tb.Btn
	btnPlans  tb.Btn
	btnHelp   tb.Btn
	btnAbout  tb.Btn
}

// NewBot creates the telebot client.
func NewBot(settings Settings) (*tb.Bot, error) {
	logger := log.Logger.Named("telegram")
	bot, err := tb.NewBot(tb.Settings{
		Token:  settings.Token,
		URL:    settings.API,
		Poller: &tb.LongPoller{Timeout: settings.PollTimeout},
		OnError: func(err error, c tb.Context) {
			fields := []zap.Field{zap.Error(err)}
			if c != nil && c.Sender() != nil {
				fields = append(fields, zap.Int64("uid", c.Sender().ID))
			}
			logger.Error("handle telegram update", fields...)
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "new telegram bot")
	}

	return bot, nil
}

// New registers every handler on bot.
func New(bot *tb.Bot, pipeline Pipeline, ledger Ledger, notifier *LogNotifier, settings Settings) (*Telegram, error) {
	switch {
	case bot == nil:
		return nil, errors.New("telegram bot is required")
	case pipeline == nil:
		return nil, errors.New("ingest pipeline is required")
	case ledger == nil:
		return nil, errors.New("quota ledger is required")
	}
	if settings.UploadTimeout <= 0 {
		settings.UploadTimeout = 10 * time.Minute
	}

	selector := &tb.ReplyMarkup{}
	s := &Telegram{
		bot:       bot,
		pipeline:  pipeline,
		ledger:    ledger,
		notifier:  notifier,
		settings:  settings,
		logger:    log.Logger.Named("telegram"),
		btnShare:  selector.Data("🔗 Share Links", "share"),
		btnBack:   selector.Data("🔙 Back", "back"),
		btnDelete: selector.Data("🗑️ Delete File", "delete"),
		btnPlans:  selector.Data("💰 Premium Plans", "plans"),
		btnHelp:   selector.Data("🔍 How to Use", "help"),
		btnAbout:  selector.Data("🤖 About", "about"),
	}

	if settings.Throttle.TotalNPerSec > 0 {
		th, err := throttle.New(settings.Throttle)
		if err != nil {
			return nil, errors.Wrap(err, "new upload throttle")
		}
		s.throttle = th
	}

	// middlewares only apply to handlers registered after Use
	bot.Use(middleware.Recover(func(err error, c tb.Context) {
		s.logger.Error("telegram handler panicked", zap.Error(err))
	}))

	s.registerUploadHandlers()
	s.registerCommandHandlers()
	s.registerCallbackHandlers()
	s.registerAdminHandlers()

	return s, nil
}

// Run polls updates until ctx is done.
func (s *Telegram) Run(ctx context.Context) {
	go s.bot.Start()
	s.logger.Info("telegram bot started", zap.String("bot", s.settings.BotUsername))

	<-ctx.Done()
	s.bot.Stop()
	s.logger.Info("telegram bot stopped")
}

func htmlOpts(markup *tb.ReplyMarkup) *tb.SendOptions {
	return &tb.SendOptions{
		ParseMode:             tb.ModeHTML,
		DisableWebPagePreview: true,
		ReplyMarkup:           markup,
	}
}
