package quota

import (
	"context"
	"sync"
	"time"
)

// Store persists users. Updates are field level so concurrent
// ban/premium writes never overwrite usage counters.
type Store interface {
	// Upsert inserts u if its uid is unknown and returns the stored user either way.
	Upsert(ctx context.Context, u *User) (*User, error)
	Get(ctx context.Context, uid int64) (*User, error)
	SetBanned(ctx context.Context, uid int64, banned bool) error
	SetVerified(ctx context.Context, uid int64, verified bool) error
	SetTier(ctx context.Context, uid int64, tier Tier, until *time.Time) error
	SetUsage(ctx context.Context, uid int64, count int, day string) error
	Count(ctx context.Context, now time.Time) (Stats, error)
}

// MemoryStore keeps users in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[int64]User
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: map[int64]User{}}
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(_ context.Context, u *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[u.UID]
	if !ok {
		stored = *u
	}
	stored.LastActiveAt = u.LastActiveAt
	s.users[u.UID] = stored

	return &stored, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, uid int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[uid]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// SetBanned implements Store.
func (s *MemoryStore) SetBanned(_ context.Context, uid int64, banned bool) error {
	return s.update(uid, func(u *User) { u.Banned = banned })
}

// SetVerified implements Store.
func (s *MemoryStore) SetVerified(_ context.Context, uid int64, verified bool) error {
	return s.update(uid, func(u *User) { u.Verified = verified })
}

// SetTier implements Store.
func (s *MemoryStore) SetTier(_ context.Context, uid int64, tier Tier, until *time.Time) error {
	return s.update(uid, func(u *User) {
		u.Tier = tier
		u.PremiumUntil = until
	})
}

// SetUsage implements Store.
func (s *MemoryStore) SetUsage(_ context.Context, uid int64, count int, day string) error {
	return s.update(uid, func(u *User) {
		u.DailyUsage = count
		u.UsageDate = day
	})
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context, now time.Time) (stats Stats, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		stats.TotalUsers++
		if u.premiumActive(now) {
			stats.PremiumUsers++
		}
	}
	return stats, nil
}

func (s *MemoryStore) update(uid int64, fn func(u *User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[uid]
	if !ok {
		return ErrUserNotFound
	}
	fn(&u)
	s.users[uid] = u
	return nil
}
