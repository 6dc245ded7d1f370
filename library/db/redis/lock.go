package redis

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	gredis "github.com/Laisky/go-redis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefixLock      = keyPrefix + "locks/"
	defaultLockTTL     = 30 * time.Second
	defaultLockRefresh = 5 * time.Second
	defaultLockSpin    = 50 * time.Millisecond
	lockReleaseTimeout = 5 * time.Second
)

// Locker is a distributed mutex shared by every replica using the same redis.
//
// The lease is refreshed while the lock is held, so a holder may keep it
// longer than ttl. ttl only bounds how long a crashed holder blocks others.
type Locker struct {
	rutils  *gredis.Utils
	owner   string
	ttl     time.Duration
	refresh time.Duration
	spin    time.Duration
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithLockTTL sets the lease of one refresh.
func WithLockTTL(ttl time.Duration) LockerOption {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLockRefreshInterval sets how often a held lease is renewed.
func WithLockRefreshInterval(interval time.Duration) LockerOption {
	return func(l *Locker) {
		if interval > 0 {
			l.refresh = interval
		}
	}
}

// WithLockRetryInterval sets the polling interval while waiting for the lock.
func WithLockRetryInterval(interval time.Duration) LockerOption {
	return func(l *Locker) {
		if interval > 0 {
			l.spin = interval
		}
	}
}

// NewLocker creates a distributed locker.
func NewLocker(cli *redis.Client, opts ...LockerOption) (*Locker, error) {
	l := &Locker{
		rutils:  gredis.NewRedisUtils(cli),
		ttl:     defaultLockTTL,
		refresh: defaultLockRefresh,
		spin:    defaultLockSpin,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.refresh >= l.ttl {
		return nil, errors.Errorf("lock refresh interval %s must be shorter than ttl %s", l.refresh, l.ttl)
	}

	l.owner, _ = os.Hostname()
	if l.owner == "" {
		l.owner = "filestream"
	}

	return l, nil
}

// Lock blocks until key is acquired or ctx is done.
// The returned func releases the lock and is safe to call more than once.
func (l *Locker) Lock(ctx context.Context, key string) (unlock func(), err error) {
	mu, err := l.rutils.NewMutex(keyPrefixLock+key,
		gredis.WithMutexTTL(l.ttl),
		gredis.WithMutexRefreshInterval(l.refresh),
		gredis.WithMutexSpinInterval(l.spin),
		gredis.WithMutexClientID(l.owner+"/"+uuid.NewString()),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "new mutex %s", key)
	}

	locked, _, err := mu.Lock(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "acquire lock %s", key)
	}
	if !locked {
		return nil, errors.Errorf("lock %s not acquired", key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			relCtx, cancel := context.WithTimeout(context.Background(), lockReleaseTimeout)
			defer cancel()
			_ = mu.Unlock(relCtx)
		})
	}, nil
}
