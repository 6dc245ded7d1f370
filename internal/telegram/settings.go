package telegram

import (
	"slices"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	tb "gopkg.in/telebot.v3"

	"github.com/Laisky/filestream/library/config"
	"github.com/Laisky/filestream/library/throttle"
)

// Settings configures the bot transport.
type Settings struct {
	Token          string
	API            string
	BinChannel     int64
	LogChannel     int64
	Admins         []int64
	UpdatesChannel string
	SupportGroup   string
	BotUsername    string
	PollTimeout    time.Duration
	// UploadTimeout bounds one ingestion started by a message.
	UploadTimeout time.Duration
	// Retention is shown to users, zero means files are kept.
	Retention time.Duration
	// Throttle limits uploads, a zero TotalNPerSec disables it.
	Throttle throttle.Cfg
}

// LoadSettingsFromConfig reads settings.telegram.*.
func LoadSettingsFromConfig() (Settings, error) {
	admins, err := config.Int64Slice("settings.telegram.admins")
	if err != nil {
		return Settings{}, errors.Wrap(err, "load admins")
	}

	settings := Settings{
		Token:          config.String("settings.telegram.token", ""),
		API:            config.String("settings.telegram.api", tb.DefaultApiURL),
		BinChannel:     config.Int64("settings.telegram.bin_channel", 0),
		LogChannel:     config.Int64("settings.telegram.log_channel", 0),
		Admins:         admins,
		UpdatesChannel: strings.TrimPrefix(config.String("settings.telegram.updates_channel", ""), "@"),
		SupportGroup:   strings.TrimPrefix(config.String("settings.telegram.support_group", ""), "@"),
		BotUsername:    strings.TrimPrefix(config.String("settings.telegram.bot_username", "FileStreamBot"), "@"),
		PollTimeout:    time.Duration(config.Int("settings.telegram.poll_timeout_seconds", 10)) * time.Second,
		UploadTimeout:  time.Duration(config.Int("settings.storage.timeout_seconds", 300)) * 2 * time.Second,
		Throttle: throttle.Cfg{
			TotalNPerSec:   config.Int("settings.telegram.throttle.total_per_sec", 20),
			TotalBurst:     config.Int("settings.telegram.throttle.total_burst", 50),
			EachKeyNPerSec: config.Int("settings.telegram.throttle.user_per_sec", 1),
			EachKeyBurst:   config.Int("settings.telegram.throttle.user_burst", 5),
		},
	}
	if settings.PollTimeout <= 0 {
		settings.PollTimeout = 10 * time.Second
	}
	if settings.UploadTimeout <= 0 {
		settings.UploadTimeout = 10 * time.Minute
	}

	return settings, nil
}

// IsAdmin reports whether uid is configured as admin.
func (s Settings) IsAdmin(uid int64) bool {
	return slices.Contains(s.Admins, uid)
}
