// Package files persists the metadata of ingested files.
package files

import (
	"time"

	"github.com/Laisky/errors/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Laisky/filestream/internal/artifact"
	"github.com/Laisky/filestream/internal/links"
)

var (
	// ErrNotFound is returned for unknown file ids.
	ErrNotFound = errors.New("file record not found")
	// ErrDuplicate is returned when a file id is already recorded.
	ErrDuplicate = errors.New("file record already exists")
)

// Record describes one stored file. FileID never changes once assigned.
type Record struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"mongo_id"`
	FileID   string             `bson:"file_id" json:"file_id"`
	Locator  string             `bson:"locator" json:"locator"`
	FileName string             `bson:"file_name" json:"file_name"`
	FileSize int64              `bson:"file_size" json:"file_size"`
	MIMEType string             `bson:"mime_type" json:"mime_type"`
	OwnerUID int64              `bson:"owner_uid" json:"owner_uid"`
	// Links are derived from FileID and cached for display.
	Links          links.Links `bson:",inline" json:"links"`
	UploadedAt     time.Time   `bson:"uploaded_at" json:"uploaded_at"`
	AccessCount    int64       `bson:"access_count" json:"access_count"`
	LastAccessedAt *time.Time  `bson:"last_accessed_at" json:"last_accessed_at,omitempty"`
	Premium        bool        `bson:"premium" json:"premium"`
}

// Reference returns the storage reference of r.
func (r *Record) Reference() artifact.Reference {
	return artifact.Reference{FileID: r.FileID, Locator: r.Locator}
}
