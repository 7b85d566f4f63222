// Package domain contains core domain types for the Maria onboarding service.
package domain

import (
	"time"
)

// Session represents one onboarding conversation's server-side record.
// It is created empty and filled in incrementally as the user provides
// their name and email.
type Session struct {
	ID              string    `json:"id"`
	Name            string    `json:"name,omitempty"`
	Email           string    `json:"email,omitempty"`
	IsEmailVerified bool      `json:"is_email_verified"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsComplete returns true once the session has both a name and a verified
// email. A complete session is never reused as a continue target.
func (s *Session) IsComplete() bool {
	return s.Name != "" && s.Email != "" && s.IsEmailVerified
}

// Abandoned returns true if the session is incomplete and has not been
// touched within the abandonment threshold.
func (s *Session) Abandoned(threshold time.Duration, now time.Time) bool {
	if s.IsComplete() {
		return false
	}
	return now.Sub(s.UpdatedAt) > threshold
}

// SessionUpdate is a partial update applied to a session. Nil fields are
// left untouched, so a name-only update and a later email-only update both
// work without clobbering each other.
type SessionUpdate struct {
	Name          *string
	Email         *string
	EmailVerified *bool
}
