package quota

import "github.com/Laisky/filestream/library/config"

const (
	defaultFreeMaxFileSize    int64 = 1 << 30 // 1GiB
	defaultPremiumMaxFileSize int64 = 4 << 30 // 4GiB
	defaultFreeDailyLimit           = 5
	defaultPremiumDailyLimit        = 50
)

// TierLimits are the limits of a single tier.
type TierLimits struct {
	MaxFileSize int64
	DailyLimit  int
}

// Limits holds the limits of every tier.
type Limits struct {
	Free    TierLimits
	Premium TierLimits
}

// For returns the limits of tier.
func (l Limits) For(tier Tier) TierLimits {
	if tier == TierPremium {
		return l.Premium
	}
	return l.Free
}

// DefaultLimits mirrors the shipped configuration.
func DefaultLimits() Limits {
	return Limits{
		Free:    TierLimits{MaxFileSize: defaultFreeMaxFileSize, DailyLimit: defaultFreeDailyLimit},
		Premium: TierLimits{MaxFileSize: defaultPremiumMaxFileSize, DailyLimit: defaultPremiumDailyLimit},
	}
}

// LoadLimitsFromConfig reads settings.quota.* and falls back to defaults for non-positive values.
func LoadLimitsFromConfig() Limits {
	def := DefaultLimits()
	limits := Limits{
		Free: TierLimits{
			MaxFileSize: config.Int64("settings.quota.free.max_file_size", def.Free.MaxFileSize),
			DailyLimit:  config.Int("settings.quota.free.daily_limit", def.Free.DailyLimit),
		},
		Premium: TierLimits{
			MaxFileSize: config.Int64("settings.quota.premium.max_file_size", def.Premium.MaxFileSize),
			DailyLimit:  config.Int("settings.quota.premium.daily_limit", def.Premium.DailyLimit),
		},
	}

	if limits.Free.MaxFileSize <= 0 {
		limits.Free.MaxFileSize = def.Free.MaxFileSize
	}
	if limits.Premium.MaxFileSize <= 0 {
		limits.Premium.MaxFileSize = def.Premium.MaxFileSize
	}
	if limits.Free.DailyLimit <= 0 {
		limits.Free.DailyLimit = def.Free.DailyLimit
	}
	if limits.Premium.DailyLimit <= 0 {
		limits.Premium.DailyLimit = def.Premium.DailyLimit
	}

	return limits
}
