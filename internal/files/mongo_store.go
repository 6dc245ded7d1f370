package files

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongoLib "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Laisky/filestream/library/db/mongo"
)

const colFiles = "files"

// MongoStore persists records in MongoDB.
type MongoStore struct {
	db mongo.DB
}

// NewMongoStore creates the store and its indexes.
func NewMongoStore(ctx context.Context, db mongo.DB) (*MongoStore, error) {
	s := &MongoStore{db: db}
	if _, err := s.col().Indexes().CreateMany(ctx, []mongoLib.IndexModel{
		{
			Keys:    bson.D{{Key: "file_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "owner_uid", Value: 1}, {Key: "uploaded_at", Value: -1}},
		},
	}); err != nil {
		return nil, errors.Wrap(err, "create files indexes")
	}

	return s, nil
}

func (s *MongoStore) col() *mongoLib.Collection {
	return s.db.GetCol(colFiles)
}

// Insert implements Store.
func (s *MongoStore) Insert(ctx context.Context, r *Record) error {
	if r.FileID == "" {
		return errors.New("file id is required")
	}

	ret, err := s.col().InsertOne(ctx, r)
	if err != nil {
		if mongo.IsDuplicateKey(err) {
			return errors.Wrapf(ErrDuplicate, "file %s", r.FileID)
		}
		return errors.Wrapf(err, "insert file %s", r.FileID)
	}

	if oid, ok := ret.InsertedID.(primitive.ObjectID); ok {
		r.ID = oid
	}
	return nil
}

// Get implements Store.
func (s *MongoStore) Get(ctx context.Context, fileID string) (*Record, error) {
	r := new(Record)
	if err := s.col().FindOne(ctx, bson.M{"file_id": fileID}).Decode(r); err != nil {
		if mongo.NotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "file %s", fileID)
		}
		return nil, errors.Wrapf(err, "get file %s", fileID)
	}

	return r, nil
}

// ListByOwner implements Store.
func (s *MongoStore) ListByOwner(ctx context.Context, uid int64, limit int) ([]*Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}, {Key: "file_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.col().Find(ctx, bson.M{"owner_uid": uid}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "find files of user %d", uid)
	}

	var out []*Record
	if err = cur.All(ctx, &out); err != nil {
		return nil, errors.Wrapf(err, "decode files of user %d", uid)
	}

	return out, nil
}

// IncrAccess implements Store.
func (s *MongoStore) IncrAccess(ctx context.Context, fileID string, at time.Time) error {
	ret, err := s.col().UpdateOne(ctx,
		bson.M{"file_id": fileID},
		bson.M{
			"$inc": bson.M{"access_count": 1},
			"$set": bson.M{"last_accessed_at": at},
		},
	)
	if err != nil {
		return errors.Wrapf(err, "increase access of file %s", fileID)
	}
	if ret.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "file %s", fileID)
	}

	return nil
}

// Delete implements Store.
func (s *MongoStore) Delete(ctx context.Context, fileID string) error {
	ret, err := s.col().DeleteOne(ctx, bson.M{"file_id": fileID})
	if err != nil {
		return errors.Wrapf(err, "delete file %s", fileID)
	}
	if ret.DeletedCount == 0 {
		return errors.Wrapf(ErrNotFound, "file %s", fileID)
	}

	return nil
}

// Count implements Store.
func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	n, err := s.col().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, errors.Wrap(err, "count files")
	}
	return n, nil
}
