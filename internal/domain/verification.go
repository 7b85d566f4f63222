package domain

import (
	"time"
)

// VerificationAttempt tracks the in-flight email verification code for a
// session. At most one attempt exists per session; a resend replaces the
// code in place and resets the failed counter.
type VerificationAttempt struct {
	SessionID      string
	Code           string
	ExpiresAt      time.Time
	FailedAttempts int
	LastResendAt   time.Time
	ResendCount    int
	CreatedAt      time.Time
}

// Expired returns true if the code's TTL has elapsed.
// All timestamps are UTC; callers must not pass zone-naive local times.
func (v *VerificationAttempt) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// CooldownRemaining returns how long until another resend is allowed,
// or zero if the cooldown window has already elapsed.
func (v *VerificationAttempt) CooldownRemaining(cooldown time.Duration, now time.Time) time.Duration {
	remaining := cooldown - now.Sub(v.LastResendAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
