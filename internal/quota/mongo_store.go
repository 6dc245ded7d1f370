package quota

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	"go.mongodb.org/mongo-driver/bson"
	mongoLib "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Laisky/filestream/library/db/mongo"
)

const colUsers = "users"

// MongoStore persists users in MongoDB.
type MongoStore struct {
	db mongo.DB
}

// NewMongoStore creates the store and makes sure uid is uniquely indexed.
func NewMongoStore(ctx context.Context, db mongo.DB) (*MongoStore, error) {
	s := &MongoStore{db: db}
	if _, err := s.col().Indexes().CreateOne(ctx, mongoLib.IndexModel{
		Keys:    bson.D{{Key: "uid", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, errors.Wrap(err, "create users index")
	}

	return s, nil
}

func (s *MongoStore) col() *mongoLib.Collection {
	return s.db.GetCol(colUsers)
}

// Upsert implements Store.
func (s *MongoStore) Upsert(ctx context.Context, u *User) (*User, error) {
	_, err := s.col().UpdateOne(ctx,
		bson.M{"uid": u.UID},
		bson.M{
			"$set": bson.M{"last_active_at": u.LastActiveAt},
			"$setOnInsert": bson.M{
				"uid":           u.UID,
				"tier":          u.Tier,
				"premium_until": u.PremiumUntil,
				"banned":        u.Banned,
				"verified":      u.Verified,
				"daily_usage":   u.DailyUsage,
				"usage_date":    u.UsageDate,
				"created_at":    u.CreatedAt,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKey(err) { // lost a concurrent insert race, fine
		return nil, errors.Wrapf(err, "upsert user %d", u.UID)
	}

	return s.Get(ctx, u.UID)
}

// Get implements Store.
func (s *MongoStore) Get(ctx context.Context, uid int64) (*User, error) {
	u := new(User)
	if err := s.col().FindOne(ctx, bson.M{"uid": uid}).Decode(u); err != nil {
		if mongo.NotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrapf(err, "get user %d", uid)
	}

	return u, nil
}

// SetBanned implements Store.
func (s *MongoStore) SetBanned(ctx context.Context, uid int64, banned bool) error {
	return s.set(ctx, uid, bson.M{"banned": banned})
}

// SetVerified implements Store.
func (s *MongoStore) SetVerified(ctx context.Context, uid int64, verified bool) error {
	return s.set(ctx, uid, bson.M{"verified": verified})
}

// SetTier implements Store.
func (s *MongoStore) SetTier(ctx context.Context, uid int64, tier Tier, until *time.Time) error {
	return s.set(ctx, uid, bson.M{"tier": tier, "premium_until": until})
}

// SetUsage implements Store.
func (s *MongoStore) SetUsage(ctx context.Context, uid int64, count int, day string) error {
	return s.set(ctx, uid, bson.M{"daily_usage": count, "usage_date": day})
}

// Count implements Store.
func (s *MongoStore) Count(ctx context.Context, now time.Time) (stats Stats, err error) {
	if stats.TotalUsers, err = s.col().CountDocuments(ctx, bson.M{}); err != nil {
		return stats, errors.Wrap(err, "count users")
	}
	if stats.PremiumUsers, err = s.col().CountDocuments(ctx, bson.M{
		"tier":          TierPremium,
		"premium_until": bson.M{"$gt": now},
	}); err != nil {
		return stats, errors.Wrap(err, "count premium users")
	}

	return stats, nil
}

func (s *MongoStore) set(ctx context.Context, uid int64, fields bson.M) error {
	ret, err := s.col().UpdateOne(ctx, bson.M{"uid": uid}, bson.M{"$set": fields})
	if err != nil {
		return errors.Wrapf(err, "update user %d", uid)
	}
	if ret.MatchedCount == 0 {
		return ErrUserNotFound
	}

	return nil
}
