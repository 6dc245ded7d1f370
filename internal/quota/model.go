package quota

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Tier controls which limits apply to a user.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

const dayLayout = "2006-01-02"

// User is the ledger entry of one platform user.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"mongo_id"`
	UID          int64              `bson:"uid" json:"uid"`
	Tier         Tier               `bson:"tier" json:"tier"`
	PremiumUntil *time.Time         `bson:"premium_until" json:"premium_until,omitempty"`
	Banned       bool               `bson:"banned" json:"banned"`
	Verified     bool               `bson:"verified" json:"verified"`
	DailyUsage   int                `bson:"daily_usage" json:"daily_usage"`
	UsageDate    string             `bson:"usage_date" json:"usage_date"` // UTC day DailyUsage counts for
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	LastActiveAt time.Time          `bson:"last_active_at" json:"last_active_at"`
}

// UsageOn returns the usage counted for day, zero once the window rolled over.
func (u *User) UsageOn(day string) int {
	if u.UsageDate != day {
		return 0
	}
	return u.DailyUsage
}

// premiumActive does not look at the stored tier alone, expiry must be in the future.
func (u *User) premiumActive(now time.Time) bool {
	return u.Tier == TierPremium &&
		u.PremiumUntil != nil &&
		u.PremiumUntil.After(now)
}

func dayOf(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// Stats summarizes the ledger for admins.
type Stats struct {
	TotalUsers   int64
	PremiumUsers int64
}
