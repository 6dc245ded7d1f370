// Package ingest stores uploaded files and issues their links while
// enforcing the user's quota.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/dustin/go-humanize"

	"github.com/Laisky/filestream/internal/artifact"
	"github.com/Laisky/filestream/internal/files"
	"github.com/Laisky/filestream/internal/links"
	"github.com/Laisky/filestream/internal/quota"
	"github.com/Laisky/filestream/library/log"
)

// Ledger is the quota surface the pipeline needs.
type Ledger interface {
	Lock(ctx context.Context, uid int64) (unlock func(), err error)
	CanIngest(ctx context.Context, uid int64, size int64) (quota.Decision, error)
	RecordUsage(ctx context.Context, uid int64) error
	Stats(ctx context.Context) (quota.Stats, error)
}

// ArtifactStore stores and deletes blobs.
type ArtifactStore interface {
	Store(ctx context.Context, blob artifact.Blob, meta artifact.Metadata) (artifact.Reference, error)
	Delete(ctx context.Context, ref artifact.Reference) error
}

// LinkIssuer derives links from a reference.
type LinkIssuer interface {
	Issue(ref artifact.Reference, name, mime string) (links.Links, error)
}

// Retention schedules deferred deletion.
type Retention interface {
	Schedule(ref artifact.Reference, delay time.Duration) bool
	Cancel(ref artifact.Reference) bool
	Pending() int
}

// Notifier receives successful ingestions. It is a side channel, its
// failures never change the outcome of an ingestion.
type Notifier interface {
	NotifyIngested(ctx context.Context, up Upload, res *Result) error
}

// Upload is one inbound file.
type Upload struct {
	UID  int64
	Blob artifact.Blob
}

// Result is returned once an upload reached DONE.
type Result struct {
	FileID  string
	Links   links.Links
	Premium bool
	Record  *files.Record
	// Usage is the daily usage including this upload.
	Usage  int
	Limits quota.TierLimits
}

// Pipeline runs ingestions and file operations.
type Pipeline struct {
	ledger    Ledger
	store     ArtifactStore
	issuer    LinkIssuer
	records   files.Store
	retention Retention
	settings  Settings
	notifier  Notifier
	clock     func() time.Time
	logger    logSDK.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNotifier sets the side channel notified after DONE.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithClock replaces the time source.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger logSDK.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// NewPipeline wires the pipeline.
func NewPipeline(
	ledger Ledger,
	store ArtifactStore,
	issuer LinkIssuer,
	records files.Store,
	retention Retention,
	settings Settings,
	opts ...Option,
) (*Pipeline, error) {
	switch {
	case ledger == nil:
		return nil, errors.New("quota ledger is required")
	case store == nil:
		return nil, errors.New("artifact store is required")
	case issuer == nil:
		return nil, errors.New("link issuer is required")
	case records == nil:
		return nil, errors.New("file records are required")
	case retention == nil:
		return nil, errors.New("retention scheduler is required")
	}
	if settings.CleanupTimeout <= 0 {
		settings.CleanupTimeout = 30 * time.Second
	}

	p := &Pipeline{
		ledger:    ledger,
		store:     store,
		issuer:    issuer,
		records:   records,
		retention: retention,
		settings:  settings,
		clock:     gutils.Clock.GetUTCNow,
		logger:    log.Logger.Named("ingest"),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// run tracks one ingestion attempt.
type run struct {
	p      *Pipeline
	up     Upload
	stage  Stage
	ref    artifact.Reference
	logger logSDK.Logger
}

// Ingest validates, stores, links and records up. It returns a *Error on
// failure. Usage is only charged after the record is persisted.
func (p *Pipeline) Ingest(ctx context.Context, up Upload) (res *Result, err error) {
	r := &run{
		p:     p,
		up:    up,
		stage: StageReceived,
		logger: p.logger.With(
			zap.Int64("uid", up.UID),
			zap.String("name", up.Blob.Name),
			zap.Int64("size", up.Blob.Size),
		),
	}

	startAt := time.Now()
	defer func() {
		code := "OK"
		if typed, ok := AsError(err); ok {
			code = string(typed.Code)
		}
		ingestTotal.WithLabelValues(code).Inc()
		ingestDuration.WithLabelValues(code).Observe(time.Since(startAt).Seconds())
	}()

	if up.UID == 0 || up.Blob.Size < 0 {
		return nil, r.fail(ctx, ErrCodeProgrammingError,
			errors.Errorf("invalid upload uid=%d size=%d", up.UID, up.Blob.Size))
	}
	if err = ctx.Err(); err != nil {
		return nil, r.fail(ctx, ErrCodeCanceled, err)
	}

	// the lock covers CanIngest through RecordUsage
	unlock, err := p.ledger.Lock(ctx, up.UID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, r.fail(ctx, ErrCodeCanceled, err)
		}
		return nil, r.fail(ctx, ErrCodePersistenceFailure, err)
	}
	defer unlock()

	decision, err := p.ledger.CanIngest(ctx, up.UID, up.Blob.Size)
	if err != nil {
		if ctx.Err() != nil {
			return nil, r.fail(ctx, ErrCodeCanceled, err)
		}
		return nil, r.fail(ctx, ErrCodePersistenceFailure, err)
	}
	if !decision.Allowed {
		return nil, r.reject(decision)
	}
	r.stage = StageValidated
	premium := decision.Tier == quota.TierPremium

	if err = ctx.Err(); err != nil {
		return nil, r.fail(ctx, ErrCodeCanceled, err)
	}
	r.ref, err = p.store.Store(ctx, up.Blob, artifact.Metadata{OwnerUID: up.UID, Premium: premium})
	if err != nil {
		if ctx.Err() != nil {
			return nil, r.fail(ctx, ErrCodeCanceled, err)
		}
		return nil, r.fail(ctx, ErrCodeStoreUnavailable, err)
	}
	r.stage = StageStored
	r.logger = r.logger.With(zap.String("file_id", r.ref.FileID), zap.String("locator", r.ref.Locator))

	if err = ctx.Err(); err != nil {
		return nil, r.fail(ctx, ErrCodeCanceled, err)
	}
	issued, err := p.issuer.Issue(r.ref, up.Blob.Name, up.Blob.MIME)
	if err != nil {
		return nil, r.fail(ctx, ErrCodeProgrammingError, err)
	}
	r.stage = StageLinked

	if err = ctx.Err(); err != nil {
		return nil, r.fail(ctx, ErrCodeCanceled, err)
	}
	record := &files.Record{
		FileID:     r.ref.FileID,
		Locator:    r.ref.Locator,
		FileName:   up.Blob.Name,
		FileSize:   up.Blob.Size,
		MIMEType:   up.Blob.MIME,
		OwnerUID:   up.UID,
		Links:      issued,
		UploadedAt: p.clock(),
		Premium:    premium,
	}
	if err = p.records.Insert(ctx, record); err != nil {
		if ctx.Err() != nil {
			return nil, r.fail(ctx, ErrCodeCanceled, err)
		}
		return nil, r.fail(ctx, ErrCodePersistenceFailure, err)
	}
	r.stage = StageRecorded

	// the record is committed, cancellation no longer applies
	commitCtx := context.WithoutCancel(ctx)
	usage := decision.Usage + 1
	if err = p.ledger.RecordUsage(commitCtx, up.UID); err != nil {
		usage = decision.Usage
		r.logger.Error("record usage after ingestion, usage undercounted", zap.Error(err))
	}
	unlock()

	if p.retention.Schedule(r.ref, p.settings.Retention) {
		r.logger.Debug("retention scheduled", zap.Duration("delay", p.settings.Retention))
	}
	r.stage = StageDone

	res = &Result{
		FileID:  r.ref.FileID,
		Links:   issued,
		Premium: premium,
		Record:  record,
		Usage:   usage,
		Limits:  decision.Limits,
	}
	ingestBytes.Add(float64(up.Blob.Size))
	r.logger.Info("file ingested",
		zap.Bool("premium", premium),
		zap.Int("usage", usage))

	p.notify(commitCtx, up, res)
	return res, nil
}

func (r *run) reject(d quota.Decision) *Error {
	code := codeOfReason(d.Reason)

	var msg string
	switch code {
	case ErrCodeBanned:
		msg = "You are banned from using this bot."
	case ErrCodeSizeExceeded:
		msg = fmt.Sprintf("File size %s exceeds the %s limit of %s.",
			humanize.IBytes(uint64(r.up.Blob.Size)), d.Tier, humanize.IBytes(uint64(d.Limits.MaxFileSize)))
	case ErrCodeDailyLimitExceeded:
		msg = fmt.Sprintf("Daily limit reached: %d/%d uploads on the %s plan.",
			d.Usage, d.Limits.DailyLimit, d.Tier)
	default:
		msg = "Internal error, please try again later."
	}

	r.logger.Info("upload rejected",
		zap.String("code", string(code)),
		zap.String("tier", string(d.Tier)),
		zap.Int("usage", d.Usage))
	return NewError(code, r.stage, msg, nil)
}

// fail turns cause into a typed error and removes the stored blob if there is one.
// Cleanup failures are only logged.
func (r *run) fail(ctx context.Context, code ErrorCode, cause error) *Error {
	stage := r.stage
	if stage.holdsBlob() {
		r.p.cleanup(ctx, r.ref, r.logger)
	}

	var msg string
	switch code {
	case ErrCodeStoreUnavailable:
		msg = "Storage is temporarily unavailable, please try again later."
		r.logger.Warn("store upload", zap.String("stage", string(stage)), zap.Error(cause))
	case ErrCodePersistenceFailure:
		msg = "Failed to save the file, please try again later."
		r.logger.Error("persist upload", zap.String("stage", string(stage)), zap.Error(cause))
	case ErrCodeCanceled:
		msg = "Upload canceled."
		r.logger.Info("upload canceled", zap.String("stage", string(stage)), zap.Error(cause))
	default:
		code = ErrCodeProgrammingError
		msg = "Internal error, the administrators have been notified."
		r.logger.Error("upload failed",
			zap.String("kind", "programming"),
			zap.String("stage", string(stage)),
			zap.Error(cause))
	}

	return NewError(code, stage, msg, cause)
}

func (p *Pipeline) cleanup(ctx context.Context, ref artifact.Reference, logger logSDK.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.settings.CleanupTimeout)
	defer cancel()

	if err := p.store.Delete(ctx, ref); err != nil {
		cleanupTotal.WithLabelValues("error").Inc()
		logger.Error("remove orphaned blob, manual cleanup needed", zap.Error(err))
		return
	}

	cleanupTotal.WithLabelValues("ok").Inc()
	logger.Info("orphaned blob removed")
}

func (p *Pipeline) notify(ctx context.Context, up Upload, res *Result) {
	if p.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.settings.CleanupTimeout)
	defer cancel()
	defer func() {
		if v := recover(); v != nil {
			p.logger.Error("notifier panicked", zap.Any("panic", v), zap.String("file_id", res.FileID))
		}
	}()

	if err := p.notifier.NotifyIngested(ctx, up, res); err != nil {
		p.logger.Warn("notify ingestion", zap.String("file_id", res.FileID), zap.Error(err))
	}
}
