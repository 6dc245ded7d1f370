package ingest

import (
	"context"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Laisky/filestream/internal/artifact"
	"github.com/Laisky/filestream/internal/files"
	"github.com/Laisky/filestream/internal/links"
	"github.com/Laisky/filestream/internal/quota"
)

const defaultListLimit = 10

// Reaper deletes a blob together with its record.
type Reaper struct {
	store   ArtifactStore
	records files.Store
}

// NewReaper creates a Reaper.
func NewReaper(store ArtifactStore, records files.Store) *Reaper {
	return &Reaper{store: store, records: records}
}

// Delete removes the blob first, then the record. Both steps tolerate
// already deleted targets.
func (r *Reaper) Delete(ctx context.Context, ref artifact.Reference) error {
	if err := r.store.Delete(ctx, ref); err != nil {
		return errors.Wrap(err, "delete blob")
	}
	if err := r.records.Delete(ctx, ref.FileID); err != nil && !errors.Is(err, files.ErrNotFound) {
		return errors.Wrap(err, "delete record")
	}

	return nil
}

func (p *Pipeline) getRecord(ctx context.Context, fileID string) (*files.Record, error) {
	record, err := p.records.Get(ctx, fileID)
	if err != nil {
		if errors.Is(err, files.ErrNotFound) {
			return nil, NewError(ErrCodeNotFound, StageDone, "File not found or already expired.", err)
		}
		return nil, NewError(ErrCodePersistenceFailure, StageDone, "Failed to load the file, please try again later.", err)
	}

	return record, nil
}

// Links re-issues the links of a recorded file. The output equals what
// Ingest returned for it.
func (p *Pipeline) Links(ctx context.Context, fileID string) (*files.Record, links.Links, error) {
	record, err := p.getRecord(ctx, fileID)
	if err != nil {
		return nil, links.Links{}, err
	}

	issued, err := p.issuer.Issue(record.Reference(), record.FileName, record.MIMEType)
	if err != nil {
		p.logger.Error("reissue links",
			zap.String("kind", "programming"),
			zap.String("file_id", fileID),
			zap.Error(err))
		return nil, links.Links{}, NewError(ErrCodeProgrammingError, StageLinked,
			"Internal error, the administrators have been notified.", err)
	}

	return record, issued, nil
}

// Access counts one access of fileID.
func (p *Pipeline) Access(ctx context.Context, fileID string) error {
	if err := p.records.IncrAccess(ctx, fileID, p.clock()); err != nil {
		if errors.Is(err, files.ErrNotFound) {
			return NewError(ErrCodeNotFound, StageDone, "File not found or already expired.", err)
		}
		return errors.Wrapf(err, "count access of %s", fileID)
	}

	return nil
}

// Delete removes a file on admin request and drops its pending retention.
func (p *Pipeline) Delete(ctx context.Context, fileID string) error {
	record, err := p.getRecord(ctx, fileID)
	if err != nil {
		return err
	}

	ref := record.Reference()
	p.retention.Cancel(ref)
	if err = NewReaper(p.store, p.records).Delete(ctx, ref); err != nil {
		return NewError(ErrCodePersistenceFailure, StageDone, "Failed to delete the file.", err)
	}

	p.logger.Info("file deleted", zap.String("file_id", fileID), zap.Int64("owner", record.OwnerUID))
	return nil
}

// UserFiles returns the newest files of uid.
func (p *Pipeline) UserFiles(ctx context.Context, uid int64, limit int) ([]*files.Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	records, err := p.records.ListByOwner(ctx, uid, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "list files of user %d", uid)
	}
	return records, nil
}

// Stats summarizes users and files.
type Stats struct {
	Users            quota.Stats
	Files            int64
	PendingDeletions int
}

// Stats collects the counters shown to admins.
func (p *Pipeline) Stats(ctx context.Context) (stats Stats, err error) {
	pool, gctx := errgroup.WithContext(ctx)
	pool.Go(func() (err error) {
		stats.Users, err = p.ledger.Stats(gctx)
		return err
	})
	pool.Go(func() (err error) {
		stats.Files, err = p.records.Count(gctx)
		return errors.Wrap(err, "count files")
	})
	if err = pool.Wait(); err != nil {
		return stats, err
	}

	stats.PendingDeletions = p.retention.Pending()
	return stats, nil
}
