package quota

import "github.com/Laisky/errors/v2"

// ErrUserNotFound is returned by stores for unknown uids.
var ErrUserNotFound = errors.New("user not found")

// Reason explains an ingestion decision.
type Reason string

const (
	ReasonOK                 Reason = "OK"
	ReasonBanned             Reason = "BANNED"
	ReasonSizeExceeded       Reason = "SIZE_EXCEEDED"
	ReasonDailyLimitExceeded Reason = "DAILY_LIMIT_EXCEEDED"
)

// Decision is the result of CanIngest.
type Decision struct {
	Allowed bool
	Reason  Reason
	Tier    Tier
	Limits  TierLimits
	// Usage is today's count before this upload.
	Usage int
}
