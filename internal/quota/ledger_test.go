package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLimits() Limits {
	return Limits{
		Free:    TierLimits{MaxFileSize: 1 << 30, DailyLimit: 5},
		Premium: TierLimits{MaxFileSize: 4 << 30, DailyLimit: 50},
	}
}

func newTestLedger(t *testing.T) (*Ledger, *MemoryStore, *fakeClock) {
	t.Helper()
	store := NewMemoryStore()
	clock := newFakeClock()
	l, err := NewLedger(store, testLimits(), WithClock(clock.Now))
	require.NoError(t, err)
	return l, store, clock
}

func TestRegisterIsIdempotent(t *testing.T) {
	l, store, clock := newTestLedger(t)
	ctx := context.Background()

	u, err := l.Register(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, TierFree, u.Tier)
	require.Equal(t, 0, u.DailyUsage)
	require.Equal(t, "2026-10-18", u.UsageDate)

	require.NoError(t, l.RecordUsage(ctx, 1))
	clock.Advance(time.Minute)

	u, err = l.Register(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, u.DailyUsage, "re-register must not reset the user")
	require.Equal(t, clock.Now(), u.LastActiveAt)

	stats, err := store.Count(ctx, clock.Now())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.TotalUsers)
}

func TestBanUnknownUserCreatesBannedShell(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Ban(ctx, 42))

	u, err := store.Get(ctx, 42)
	require.NoError(t, err)
	require.True(t, u.Banned)
	require.Equal(t, TierFree, u.Tier)

	banned, err := l.IsBanned(ctx, 42)
	require.NoError(t, err)
	require.True(t, banned)

	d, err := l.CanIngest(ctx, 42, 1)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, ReasonBanned, d.Reason)

	require.NoError(t, l.Unban(ctx, 42))
	d, err = l.CanIngest(ctx, 42, 1)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, ReasonOK, d.Reason)
}

func TestVerifyKeepsOtherFields(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordUsage(ctx, 7))
	require.NoError(t, l.Verify(ctx, 7))

	u, err := store.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, u.Verified)
	require.Equal(t, 1, u.DailyUsage)

	// unknown users are registered first
	require.NoError(t, l.Verify(ctx, 8))
	u, err = store.Get(ctx, 8)
	require.NoError(t, err)
	require.True(t, u.Verified)
	require.Equal(t, TierFree, u.Tier)
}

func TestCanIngestSizeExceededDoesNotMutateUsage(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordUsage(ctx, 7))

	for _, size := range []int64{1<<30 + 1, 2 << 30, 5 << 30} {
		d, err := l.CanIngest(ctx, 7, size)
		require.NoError(t, err)
		require.False(t, d.Allowed)
		require.Equal(t, ReasonSizeExceeded, d.Reason)
		require.Equal(t, TierFree, d.Tier)
	}

	usage, err := l.DailyUsage(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 1, usage)
}

func TestCanIngestSizeBoundary(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	d, err := l.CanIngest(ctx, 7, 1<<30)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestDailyLimitAndRollover(t *testing.T) {
	l, _, clock := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.CanIngest(ctx, 3, 10)
		require.NoError(t, err)
		require.True(t, d.Allowed, "upload %d", i)
		require.Equal(t, i, d.Usage)
		require.NoError(t, l.RecordUsage(ctx, 3))
	}

	d, err := l.CanIngest(ctx, 3, 10)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, ReasonDailyLimitExceeded, d.Reason)

	// next UTC day
	clock.Advance(15 * time.Hour)

	usage, err := l.DailyUsage(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 0, usage)

	d, err = l.CanIngest(ctx, 3, 10)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	require.NoError(t, l.RecordUsage(ctx, 3))
	usage, err = l.DailyUsage(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 1, usage)
}

func TestPremiumLazyExpiry(t *testing.T) {
	l, store, clock := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.GrantPremium(ctx, 9, 1))

	premium, err := l.IsPremium(ctx, 9)
	require.NoError(t, err)
	require.True(t, premium)

	d, err := l.CanIngest(ctx, 9, 3<<30)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, TierPremium, d.Tier)

	clock.Advance(25 * time.Hour)

	premium, err = l.IsPremium(ctx, 9)
	require.NoError(t, err)
	require.False(t, premium)

	// the read downgraded the stored tier
	u, err := store.Get(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, TierFree, u.Tier)
	require.Nil(t, u.PremiumUntil)

	d, err = l.CanIngest(ctx, 9, 3<<30)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, ReasonSizeExceeded, d.Reason)
	require.Equal(t, TierFree, d.Tier)
}

func TestCanIngestExpiresPremiumWithoutPriorCheck(t *testing.T) {
	l, store, clock := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.GrantPremium(ctx, 9, 1))
	clock.Advance(48 * time.Hour)

	d, err := l.CanIngest(ctx, 9, 10)
	require.NoError(t, err)
	require.Equal(t, TierFree, d.Tier)
	require.Equal(t, testLimits().Free, d.Limits)

	u, err := store.Get(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, TierFree, u.Tier)
}

func TestGrantPremiumResetsExpiry(t *testing.T) {
	l, store, clock := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.GrantPremium(ctx, 5, 30))
	clock.Advance(24 * time.Hour)
	require.NoError(t, l.GrantPremium(ctx, 5, 2))

	u, err := store.Get(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, clock.Now().Add(48*time.Hour), *u.PremiumUntil)

	require.Error(t, l.GrantPremium(ctx, 5, 0))
	require.Error(t, l.GrantPremium(ctx, 5, -3))

	require.NoError(t, l.RevokePremium(ctx, 5))
	premium, err := l.IsPremium(ctx, 5)
	require.NoError(t, err)
	require.False(t, premium)
}

func TestStats(t *testing.T) {
	l, _, clock := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Register(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, l.GrantPremium(ctx, 2, 1))
	require.NoError(t, l.GrantPremium(ctx, 3, 10))

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{TotalUsers: 3, PremiumUsers: 2}, stats)

	clock.Advance(2 * 24 * time.Hour)
	stats, err = l.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{TotalUsers: 3, PremiumUsers: 1}, stats)
}

func TestLimitsFor(t *testing.T) {
	limits := testLimits()
	require.Equal(t, limits.Free, limits.For(TierFree))
	require.Equal(t, limits.Premium, limits.For(TierPremium))
	require.Equal(t, limits.Free, limits.For(Tier("unknown")))
}
