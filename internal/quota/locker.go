package quota

import (
	"context"
	"sync"

	"github.com/Laisky/errors/v2"
)

// Locker serializes work per key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker. Entries are dropped once nobody holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sem  chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: map[string]*keyedLock{}}
}

// Lock blocks until key is free or ctx is done.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyedLock{sem: make(chan struct{}, 1)}
		m.locks[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	select {
	case kl.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, kl)
		return nil, errors.Wrapf(ctx.Err(), "wait for lock %s", key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.sem
			m.release(key, kl)
		})
	}, nil
}

func (m *KeyedMutex) release(key string, kl *keyedLock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(m.locks, key)
	}
}

// size is used by tests to check entries are cleaned up.
func (m *KeyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
