package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/filestream/internal/artifact"
	"github.com/Laisky/filestream/internal/files"
	"github.com/Laisky/filestream/internal/links"
	"github.com/Laisky/filestream/internal/quota"
	"github.com/Laisky/filestream/internal/retention"
)

const (
	mib int64 = 1 << 20
	gib int64 = 1 << 30
)

var errMemNotExist = errors.New("mem backend: not exist")

// memBackend is an artifact.Backend keeping blobs in a map.
type memBackend struct {
	mu        sync.Mutex
	failPuts  int
	puts      int
	seq       int
	stored    map[string]artifact.Blob
	removeErr error
	putHook   func(ctx context.Context)
}

func newMemBackend() *memBackend {
	return &memBackend{stored: map[string]artifact.Blob{}}
}

func (b *memBackend) Name() string { return "mem" }

func (b *memBackend) Put(ctx context.Context, blob artifact.Blob, _ artifact.Metadata) (artifact.Reference, error) {
	b.mu.Lock()
	b.puts++
	if b.puts <= b.failPuts {
		b.mu.Unlock()
		return artifact.Reference{}, errors.Errorf("simulated store failure %d", b.puts)
	}
	b.seq++
	id := fmt.Sprintf("%d", 1000+b.seq)
	b.stored[id] = blob
	hook := b.putHook
	b.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	return artifact.Reference{FileID: id, Locator: "bin:" + id}, nil
}

func (b *memBackend) Remove(_ context.Context, ref artifact.Reference) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.removeErr != nil {
		return b.removeErr
	}
	if _, ok := b.stored[ref.FileID]; !ok {
		return errMemNotExist
	}
	delete(b.stored, ref.FileID)
	return nil
}

func (b *memBackend) IsNotExist(err error) bool {
	return errors.Is(err, errMemNotExist)
}

func (b *memBackend) storedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.stored)
}

func (b *memBackend) putCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.puts
}

// faultyRecords fails inserts on demand.
type faultyRecords struct {
	*files.MemoryStore
	insertErr error
}

func (s *faultyRecords) Insert(ctx context.Context, r *files.Record) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	return s.MemoryStore.Insert(ctx, r)
}

// faultyUsers fails usage writes on demand.
type faultyUsers struct {
	*quota.MemoryStore
	usageErr error
}

func (s *faultyUsers) SetUsage(ctx context.Context, uid int64, count int, day string) error {
	if s.usageErr != nil {
		return s.usageErr
	}
	return s.MemoryStore.SetUsage(ctx, uid, count, day)
}

type recordingNotifier struct {
	mu       sync.Mutex
	calls    []*Result
	err      error
	panicMsg string
}

func (n *recordingNotifier) NotifyIngested(_ context.Context, _ Upload, res *Result) error {
	n.mu.Lock()
	n.calls = append(n.calls, res)
	n.mu.Unlock()

	if n.panicMsg != "" {
		panic(n.panicMsg)
	}
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type failingIssuer struct{}

func (failingIssuer) Issue(artifact.Reference, string, string) (links.Links, error) {
	return links.Links{}, errors.New("base url vanished")
}

type harness struct {
	pipeline  *Pipeline
	ledger    *quota.Ledger
	users     *faultyUsers
	backend   *memBackend
	records   *faultyRecords
	scheduler *retention.Scheduler
	notifier  *recordingNotifier
}

type harnessConfig struct {
	retention  time.Duration
	issuer     LinkIssuer
	locker     quota.Locker
	dailyLimit int
}

func newHarness(t *testing.T, cfg harnessConfig) *harness {
	t.Helper()

	h := &harness{
		users:    &faultyUsers{MemoryStore: quota.NewMemoryStore()},
		backend:  newMemBackend(),
		records:  &faultyRecords{MemoryStore: files.NewMemoryStore()},
		notifier: &recordingNotifier{},
	}

	dailyLimit := cfg.dailyLimit
	if dailyLimit == 0 {
		dailyLimit = 5
	}
	var ledgerOpts []quota.Option
	if cfg.locker != nil {
		ledgerOpts = append(ledgerOpts, quota.WithLocker(cfg.locker))
	}

	var err error
	h.ledger, err = quota.NewLedger(h.users, quota.Limits{
		Free:    quota.TierLimits{MaxFileSize: 1 * gib, DailyLimit: dailyLimit},
		Premium: quota.TierLimits{MaxFileSize: 4 * gib, DailyLimit: 50},
	}, ledgerOpts...)
	require.NoError(t, err)

	store, err := artifact.NewStore(h.backend, artifact.WithRetryBackoff(time.Millisecond))
	require.NoError(t, err)

	issuer := cfg.issuer
	if issuer == nil {
		issuer, err = links.NewIssuer(links.Settings{
			DownloadBase: "https://dl.example.com",
			StreamBase:   "https://stream.example.com",
		})
		require.NoError(t, err)
	}

	h.scheduler, err = retention.NewScheduler(NewReaper(store, h.records))
	require.NoError(t, err)
	t.Cleanup(h.scheduler.Stop)

	h.pipeline, err = NewPipeline(h.ledger, store, issuer, h.records, h.scheduler,
		Settings{Retention: cfg.retention, CleanupTimeout: time.Second},
		WithNotifier(h.notifier),
	)
	require.NoError(t, err)

	return h
}

func (h *harness) usage(t *testing.T, uid int64) int {
	t.Helper()
	n, err := h.ledger.DailyUsage(context.Background(), uid)
	require.NoError(t, err)
	return n
}

func (h *harness) recordCount(t *testing.T) int64 {
	t.Helper()
	n, err := h.records.Count(context.Background())
	require.NoError(t, err)
	return n
}

func pdf(uid int64, size int64) Upload {
	return Upload{UID: uid, Blob: artifact.Blob{
		Kind:     artifact.KindDocument,
		SourceID: "doc-src",
		Name:     "report.pdf",
		MIME:     "application/pdf",
		Size:     size,
	}}
}

func video(uid int64, size int64) Upload {
	return Upload{UID: uid, Blob: artifact.Blob{
		Kind:     artifact.KindVideo,
		SourceID: "video-src",
		Name:     "movie.mp4",
		MIME:     "video/mp4",
		Size:     size,
	}}
}

func requireCode(t *testing.T, err error, code ErrorCode, stage Stage) {
	t.Helper()
	typed, ok := AsError(err)
	require.True(t, ok, "expected *ingest.Error, got %v", err)
	require.Equal(t, code, typed.Code)
	require.Equal(t, stage, typed.Stage)
	require.NotEmpty(t, typed.Message)
}
