package files

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
)

// Store persists records.
type Store interface {
	// Insert returns ErrDuplicate if the file id is taken.
	Insert(ctx context.Context, r *Record) error
	Get(ctx context.Context, fileID string) (*Record, error)
	// ListByOwner returns the newest records of uid first.
	ListByOwner(ctx context.Context, uid int64, limit int) ([]*Record, error)
	IncrAccess(ctx context.Context, fileID string, at time.Time) error
	// Delete returns ErrNotFound if nothing was deleted.
	Delete(ctx context.Context, fileID string) error
	Count(ctx context.Context) (int64, error)
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Record{}}
}

// Insert implements Store.
func (s *MemoryStore) Insert(_ context.Context, r *Record) error {
	if r.FileID == "" {
		return errors.New("file id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[r.FileID]; ok {
		return errors.Wrapf(ErrDuplicate, "file %s", r.FileID)
	}
	s.records[r.FileID] = *r
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, fileID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[fileID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "file %s", fileID)
	}
	return &r, nil
}

// ListByOwner implements Store.
func (s *MemoryStore) ListByOwner(_ context.Context, uid int64, limit int) ([]*Record, error) {
	s.mu.RLock()
	var out []*Record
	for _, r := range s.records {
		if r.OwnerUID == uid {
			r := r
			out = append(out, &r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].FileID > out[j].FileID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// IncrAccess implements Store.
func (s *MemoryStore) IncrAccess(_ context.Context, fileID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[fileID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "file %s", fileID)
	}
	r.AccessCount++
	r.LastAccessedAt = &at
	s.records[fileID] = r
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[fileID]; !ok {
		return errors.Wrapf(ErrNotFound, "file %s", fileID)
	}
	delete(s.records, fileID)
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}
