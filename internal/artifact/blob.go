// Package artifact puts uploaded blobs into durable storage and removes them again.
package artifact

import (
	"context"
	"io"
	"strings"
)

// Kind is the media kind reported by the transport.
type Kind string

const (
	KindDocument Kind = "document"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindPhoto    Kind = "photo"
)

// Blob is a handle to uploaded content.
type Blob struct {
	Kind Kind
	// SourceID is the platform file id, enough for backends that relay by reference.
	SourceID string
	Name     string
	MIME     string
	Size     int64
	// Open streams the content, only byte oriented backends call it.
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// IsVideo reports whether the blob carries video content.
func (b Blob) IsVideo() bool {
	return b.Kind == KindVideo || IsVideoMIME(b.MIME)
}

// IsVideoMIME reports whether mime is a video/* type.
func IsVideoMIME(mime string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mime)), "video/")
}

// Metadata is the envelope stored alongside a blob.
type Metadata struct {
	OwnerUID int64
	Premium  bool
}

// Reference locates a stored blob.
type Reference struct {
	// FileID is unique and stable, links are derived from it.
	FileID string `bson:"file_id" json:"file_id"`
	// Locator is backend specific and sufficient to delete the blob.
	Locator string `bson:"locator" json:"locator"`
}

// IsZero reports whether ref is empty.
func (r Reference) IsZero() bool {
	return r.FileID == ""
}

// Backend is a concrete blob store.
type Backend interface {
	// Name is used in logs and metrics.
	Name() string
	// Put stores the blob. On error nothing must be left behind.
	Put(ctx context.Context, blob Blob, meta Metadata) (Reference, error)
	Remove(ctx context.Context, ref Reference) error
	// IsNotExist reports whether err means the blob is already gone.
	IsNotExist(err error) bool
}
