// Package retention deletes stored artifacts once their TTL elapsed.
//
// Timers live in process memory only. Deletions that are pending when the
// process exits are lost and the artifacts stay in storage.
package retention

import (
	"context"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Laisky/filestream/internal/artifact"
	"github.com/Laisky/filestream/library/config"
	"github.com/Laisky/filestream/library/log"
)

const defaultDeleteTimeout = time.Minute

var (
	deletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filestream_retention_deletions_total",
		Help: "Expired artifact deletions by result.",
	}, []string{"result"})

	pendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "filestream_retention_pending",
		Help: "Artifacts waiting for deletion.",
	})
)

// Deleter removes an expired artifact.
type Deleter interface {
	Delete(ctx context.Context, ref artifact.Reference) error
}

// DeleterFunc adapts a function to Deleter.
type DeleterFunc func(ctx context.Context, ref artifact.Reference) error

// Delete implements Deleter.
func (f DeleterFunc) Delete(ctx context.Context, ref artifact.Reference) error {
	return f(ctx, ref)
}

// DelayFromConfig reads settings.retention.auto_delete_seconds.
// Zero or negative disables retention.
func DelayFromConfig() time.Duration {
	return time.Duration(config.Int64("settings.retention.auto_delete_seconds", 43200)) * time.Second
}

// Scheduler runs one timer per file id.
type Scheduler struct {
	deleter Deleter
	timeout time.Duration
	logger  logSDK.Logger

	mu      sync.Mutex
	timers  map[string]*pending
	seq     uint64
	stopped bool
	running sync.WaitGroup
}

type pending struct {
	timer *time.Timer
	seq   uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDeleteTimeout bounds a single deletion.
func WithDeleteTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logSDK.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// NewScheduler creates a Scheduler calling deleter on expiry.
func NewScheduler(deleter Deleter, opts ...Option) (*Scheduler, error) {
	if deleter == nil {
		return nil, errors.New("retention deleter is required")
	}

	s := &Scheduler{
		deleter: deleter,
		timeout: defaultDeleteTimeout,
		logger:  log.Logger.Named("retention"),
		timers:  map[string]*pending{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Schedule arranges deletion of ref after delay and returns immediately.
// A delay <= 0 disables retention for ref. Scheduling an already pending
// ref replaces its timer. It reports whether a timer is now armed.
func (s *Scheduler) Schedule(ref artifact.Reference, delay time.Duration) bool {
	if delay <= 0 || ref.IsZero() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}

	s.cancelLocked(ref.FileID)
	s.seq++
	seq := s.seq
	s.timers[ref.FileID] = &pending{
		seq:   seq,
		timer: time.AfterFunc(delay, func() { s.fire(ref, seq) }),
	}
	pendingGauge.Inc()

	s.logger.Debug("schedule deletion",
		zap.String("file_id", ref.FileID),
		zap.Duration("delay", delay))
	return true
}

// Cancel drops the pending deletion of ref, if any.
func (s *Scheduler) Cancel(ref artifact.Reference) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(ref.FileID)
}

func (s *Scheduler) cancelLocked(fileID string) bool {
	p, ok := s.timers[fileID]
	if !ok {
		return false
	}

	p.timer.Stop()
	delete(s.timers, fileID)
	pendingGauge.Dec()
	return true
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every timer and waits for running deletions.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id := range s.timers {
		s.cancelLocked(id)
	}
	s.mu.Unlock()

	s.running.Wait()
}

func (s *Scheduler) fire(ref artifact.Reference, seq uint64) {
	s.mu.Lock()
	p, ok := s.timers[ref.FileID]
	if !ok || p.seq != seq || s.stopped {
		// replaced or canceled after the timer fired
		s.mu.Unlock()
		return
	}
	delete(s.timers, ref.FileID)
	pendingGauge.Dec()
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	logger := s.logger.With(zap.String("file_id", ref.FileID), zap.String("locator", ref.Locator))
	if err := s.deleter.Delete(ctx, ref); err != nil {
		deletionsTotal.WithLabelValues("error").Inc()
		logger.Error("delete expired artifact", zap.Error(err))
		return
	}

	deletionsTotal.WithLabelValues("ok").Inc()
	logger.Info("expired artifact deleted")
}
