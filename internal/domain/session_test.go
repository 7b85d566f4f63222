package domain

import (
	"testing"
	"time"
)

func TestSession_IsComplete(t *testing.T) {
	tests := []struct {
		name     string
		session  Session
		complete bool
	}{
		{"empty", Session{}, false},
		{"name only", Session{Name: "Jane Doe"}, false},
		{"email unverified", Session{Name: "Jane Doe", Email: "jane@example.com"}, false},
		{"verified without name", Session{Email: "jane@example.com", IsEmailVerified: true}, false},
		{"name and verified email", Session{Name: "Jane Doe", Email: "jane@example.com", IsEmailVerified: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.IsComplete(); got != tt.complete {
				t.Errorf("IsComplete() = %v, want %v", got, tt.complete)
			}
		})
	}
}

func TestSession_Abandoned(t *testing.T) {
	now := time.Now().UTC()
	threshold := 10 * time.Minute

	fresh := Session{UpdatedAt: now.Add(-time.Minute)}
	if fresh.Abandoned(threshold, now) {
		t.Error("fresh incomplete session should not be abandoned")
	}

	stale := Session{UpdatedAt: now.Add(-11 * time.Minute)}
	if !stale.Abandoned(threshold, now) {
		t.Error("stale incomplete session should be abandoned")
	}

	complete := Session{
		Name:            "Jane Doe",
		Email:           "jane@example.com",
		IsEmailVerified: true,
		UpdatedAt:       now.Add(-24 * time.Hour),
	}
	if complete.Abandoned(threshold, now) {
		t.Error("complete session must never be considered abandoned")
	}
}

func TestVerificationAttempt_Expired(t *testing.T) {
	now := time.Now().UTC()

	live := VerificationAttempt{ExpiresAt: now.Add(time.Minute)}
	if live.Expired(now) {
		t.Error("attempt before ExpiresAt should not be expired")
	}

	dead := VerificationAttempt{ExpiresAt: now.Add(-time.Second)}
	if !dead.Expired(now) {
		t.Error("attempt past ExpiresAt should be expired")
	}
}

func TestVerificationAttempt_CooldownRemaining(t *testing.T) {
	now := time.Now().UTC()
	cooldown := 30 * time.Second

	recent := VerificationAttempt{LastResendAt: now.Add(-10 * time.Second)}
	if got := recent.CooldownRemaining(cooldown, now); got != 20*time.Second {
		t.Errorf("CooldownRemaining() = %v, want 20s", got)
	}

	elapsed := VerificationAttempt{LastResendAt: now.Add(-time.Minute)}
	if got := elapsed.CooldownRemaining(cooldown, now); got != 0 {
		t.Errorf("CooldownRemaining() = %v, want 0", got)
	}
}
