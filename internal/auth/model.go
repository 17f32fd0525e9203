package auth

import (
	"time"

	"github.com/cayman031/study-with-me/internal/member"
)

type Principal struct {
	MemberID string
	Role     member.Role
}

type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type LoginAttempt struct {
	Email        string
	FailCount    int
	BlockedUntil *time.Time
	LastFailedAt *time.Time
}

// BlockedAt reports whether the attempt record locks logins at now.
func (a LoginAttempt) BlockedAt(now time.Time) bool {
	return a.BlockedUntil != nil && now.Before(*a.BlockedUntil)
}

type ThrottlePolicy struct {
	Threshold int
	Lockout   time.Duration
}

func DefaultThrottlePolicy() ThrottlePolicy {
	return ThrottlePolicy{Threshold: 5, Lockout: 10 * time.Minute}
}

type CleanupResult struct {
	DeletedRevokedTokens int64 `json:"deleted_revoked_tokens"`
	DeletedLoginAttempts int64 `json:"deleted_login_attempts"`
}
