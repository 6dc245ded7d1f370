// Package quota tracks user tiers, daily usage, premium expiry and bans.
//
// Every operation auto-registers an unknown uid first, including Ban, which
// therefore leaves a banned shell record for users never seen before.
package quota

import (
	"context"
	"strconv"
	"time"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/filestream/library/log"
)

// Ledger enforces the free/premium quota.
type Ledger struct {
	store  Store
	limits Limits
	locker Locker
	clock  func() time.Time
	logger logSDK.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces the time source.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) { l.clock = clock }
}

// WithLocker replaces the in-process per-user lock, e.g. with a redis lock.
func WithLocker(locker Locker) Option {
	return func(l *Ledger) { l.locker = locker }
}

// WithLogger sets the logger.
func WithLogger(logger logSDK.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// NewLedger creates a Ledger over store.
func NewLedger(store Store, limits Limits, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("quota store is required")
	}

	l := &Ledger{
		store:  store,
		limits: limits,
		locker: NewKeyedMutex(),
		clock:  gutils.Clock.GetUTCNow,
		logger: log.Logger.Named("quota"),
	}
	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Limits returns the configured tier limits.
func (l *Ledger) Limits() Limits {
	return l.limits
}

// Lock serializes CanIngest and RecordUsage of one user.
func (l *Ledger) Lock(ctx context.Context, uid int64) (unlock func(), err error) {
	unlock, err = l.locker.Lock(ctx, "user:"+strconv.FormatInt(uid, 10))
	if err != nil {
		return nil, errors.Wrapf(err, "lock user %d", uid)
	}
	return unlock, nil
}

// Register creates a free user if uid is unknown, otherwise only touches last_active_at.
func (l *Ledger) Register(ctx context.Context, uid int64) (*User, error) {
	now := l.clock()
	u, err := l.store.Upsert(ctx, &User{
		UID:          uid,
		Tier:         TierFree,
		UsageDate:    dayOf(now),
		CreatedAt:    now,
		LastActiveAt: now,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "register user %d", uid)
	}

	return u, nil
}

// load returns the stored user, registering it on first touch.
func (l *Ledger) load(ctx context.Context, uid int64) (*User, error) {
	u, err := l.store.Get(ctx, uid)
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, ErrUserNotFound):
		return l.Register(ctx, uid)
	default:
		return nil, errors.Wrapf(err, "load user %d", uid)
	}
}

// IsBanned reports whether uid is banned.
func (l *Ledger) IsBanned(ctx context.Context, uid int64) (bool, error) {
	u, err := l.load(ctx, uid)
	if err != nil {
		return false, err
	}
	return u.Banned, nil
}

// Ban bans uid.
func (l *Ledger) Ban(ctx context.Context, uid int64) error {
	return l.setBanned(ctx, uid, true)
}

// Unban lifts the ban of uid.
func (l *Ledger) Unban(ctx context.Context, uid int64) error {
	return l.setBanned(ctx, uid, false)
}

func (l *Ledger) setBanned(ctx context.Context, uid int64, banned bool) error {
	if _, err := l.load(ctx, uid); err != nil {
		return err
	}
	if err := l.store.SetBanned(ctx, uid, banned); err != nil {
		return errors.Wrapf(err, "set banned=%t for user %d", banned, uid)
	}

	l.logger.Info("change user ban state", zap.Int64("uid", uid), zap.Bool("banned", banned))
	return nil
}

// Verify marks uid as verified.
func (l *Ledger) Verify(ctx context.Context, uid int64) error {
	if _, err := l.load(ctx, uid); err != nil {
		return err
	}
	if err := l.store.SetVerified(ctx, uid, true); err != nil {
		return errors.Wrapf(err, "verify user %d", uid)
	}

	l.logger.Info("user verified", zap.Int64("uid", uid))
	return nil
}

// GrantPremium makes uid premium until now+days. A new grant replaces the
// previous expiry instead of extending it.
func (l *Ledger) GrantPremium(ctx context.Context, uid int64, days int) error {
	if days <= 0 {
		return errors.Errorf("premium days must be positive, got %d", days)
	}
	if _, err := l.load(ctx, uid); err != nil {
		return err
	}

	until := l.clock().Add(time.Duration(days) * 24 * time.Hour)
	if err := l.store.SetTier(ctx, uid, TierPremium, &until); err != nil {
		return errors.Wrapf(err, "grant premium to user %d", uid)
	}

	l.logger.Info("grant premium", zap.Int64("uid", uid), zap.Time("until", until))
	return nil
}

// RevokePremium downgrades uid to free immediately.
func (l *Ledger) RevokePremium(ctx context.Context, uid int64) error {
	if _, err := l.load(ctx, uid); err != nil {
		return err
	}
	if err := l.store.SetTier(ctx, uid, TierFree, nil); err != nil {
		return errors.Wrapf(err, "revoke premium of user %d", uid)
	}

	return nil
}

// IsPremium reports whether uid has an unexpired premium tier.
//
// This is not a pure query: an expired premium user is downgraded to free
// in the store before false is returned.
func (l *Ledger) IsPremium(ctx context.Context, uid int64) (bool, error) {
	u, err := l.load(ctx, uid)
	if err != nil {
		return false, err
	}
	return l.reconcilePremium(ctx, u)
}

// reconcilePremium applies lazy expiry to an already loaded user.
func (l *Ledger) reconcilePremium(ctx context.Context, u *User) (bool, error) {
	if u.premiumActive(l.clock()) {
		return true, nil
	}
	if u.Tier != TierPremium {
		return false, nil
	}

	if err := l.store.SetTier(ctx, u.UID, TierFree, nil); err != nil {
		return false, errors.Wrapf(err, "expire premium of user %d", u.UID)
	}
	u.Tier, u.PremiumUntil = TierFree, nil

	l.logger.Info("premium expired", zap.Int64("uid", u.UID))
	return false, nil
}

// CanIngest checks ban, tier size limit and tier daily limit, in that order.
// It never changes usage counters.
func (l *Ledger) CanIngest(ctx context.Context, uid int64, size int64) (Decision, error) {
	u, err := l.load(ctx, uid)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Tier: TierFree}
	if u.Banned {
		d.Reason = ReasonBanned
		return d, nil
	}

	premium, err := l.reconcilePremium(ctx, u)
	if err != nil {
		return Decision{}, err
	}
	if premium {
		d.Tier = TierPremium
	}

	d.Limits = l.limits.For(d.Tier)
	d.Usage = u.UsageOn(dayOf(l.clock()))
	switch {
	case size > d.Limits.MaxFileSize:
		d.Reason = ReasonSizeExceeded
	case d.Usage >= d.Limits.DailyLimit:
		d.Reason = ReasonDailyLimitExceeded
	default:
		d.Allowed = true
		d.Reason = ReasonOK
	}

	return d, nil
}

// RecordUsage charges one upload to today's window, resetting the window first
// if the day changed. Callers must hold Lock for uid.
func (l *Ledger) RecordUsage(ctx context.Context, uid int64) error {
	u, err := l.load(ctx, uid)
	if err != nil {
		return err
	}

	day := dayOf(l.clock())
	if err = l.store.SetUsage(ctx, uid, u.UsageOn(day)+1, day); err != nil {
		return errors.Wrapf(err, "record usage of user %d", uid)
	}

	return nil
}

// DailyUsage returns today's upload count of uid.
func (l *Ledger) DailyUsage(ctx context.Context, uid int64) (int, error) {
	u, err := l.load(ctx, uid)
	if err != nil {
		return 0, err
	}
	return u.UsageOn(dayOf(l.clock())), nil
}

// Stats counts total and active premium users.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	stats, err := l.store.Count(ctx, l.clock())
	if err != nil {
		return stats, errors.Wrap(err, "count users")
	}
	return stats, nil
}
