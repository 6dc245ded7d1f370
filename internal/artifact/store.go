package artifact

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/filestream/library/log"
)

const storeAttempts = 2

// Store wraps a Backend with one retry and idempotent deletion.
type Store struct {
	backend Backend
	backoff time.Duration
	timeout time.Duration
	logger  logSDK.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRetryBackoff sets the wait before the retry.
func WithRetryBackoff(d time.Duration) StoreOption {
	return func(s *Store) { s.backoff = d }
}

// WithAttemptTimeout bounds a single backend call, zero disables it.
func WithAttemptTimeout(d time.Duration) StoreOption {
	return func(s *Store) { s.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger logSDK.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a Store over backend.
func NewStore(backend Backend, opts ...StoreOption) (*Store, error) {
	if backend == nil {
		return nil, errors.New("artifact backend is required")
	}

	s := &Store{
		backend: backend,
		backoff: time.Second,
		logger:  log.Logger.Named("artifact"),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Backend returns the wrapped backend name.
func (s *Store) Backend() string {
	return s.backend.Name()
}

// Store puts blob into the backend. A failed attempt is retried once after
// the backoff, then ErrUnavailable is returned. The returned reference is
// always complete.
func (s *Store) Store(ctx context.Context, blob Blob, meta Metadata) (Reference, error) {
	logger := s.logger.With(
		zap.String("backend", s.backend.Name()),
		zap.String("name", blob.Name),
		zap.Int64("owner", meta.OwnerUID),
	)

	var lastErr error
	for attempt := 1; attempt <= storeAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, s.backoff); err != nil {
				return Reference{}, errors.Wrap(err, "wait for store retry")
			}
		}

		ref, err := s.put(ctx, blob, meta)
		if err == nil {
			storeAttemptsTotal.WithLabelValues(s.backend.Name(), "ok").Inc()
			return ref, nil
		}

		storeAttemptsTotal.WithLabelValues(s.backend.Name(), "error").Inc()
		if ctx.Err() != nil {
			return Reference{}, errors.Wrap(ctx.Err(), "store blob")
		}

		lastErr = err
		logger.Warn("store attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}

	return Reference{}, errors.Wrapf(ErrUnavailable, "store %q after %d attempts: %v",
		blob.Name, storeAttempts, lastErr)
}

func (s *Store) put(ctx context.Context, blob Blob, meta Metadata) (Reference, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	startAt := time.Now()
	defer func() {
		storeDuration.WithLabelValues(s.backend.Name()).Observe(time.Since(startAt).Seconds())
	}()

	ref, err := s.backend.Put(ctx, blob, meta)
	if err != nil {
		return Reference{}, err
	}
	if ref.IsZero() {
		return Reference{}, errors.Errorf("backend %s returned an empty reference", s.backend.Name())
	}

	return ref, nil
}

// Delete removes ref. Deleting a reference that is already gone succeeds.
func (s *Store) Delete(ctx context.Context, ref Reference) error {
	if ref.IsZero() {
		return errors.WithStack(ErrInvalidReference)
	}

	err := s.backend.Remove(ctx, ref)
	switch {
	case err == nil:
		deletesTotal.WithLabelValues(s.backend.Name(), "ok").Inc()
		return nil
	case s.backend.IsNotExist(err):
		deletesTotal.WithLabelValues(s.backend.Name(), "missing").Inc()
		s.logger.Debug("blob already deleted", zap.String("file_id", ref.FileID))
		return nil
	default:
		deletesTotal.WithLabelValues(s.backend.Name(), "error").Inc()
		return errors.Wrapf(err, "delete blob %s", ref.FileID)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
