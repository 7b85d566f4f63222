// Package verification implements the email verification service: it issues
// time-boxed numeric codes, enforces resend cooldowns and attempt caps, and
// marks a session's email verified.
//
// Every timestamp stored or compared here is UTC. Bare local times corrupt
// cooldown arithmetic when the server and client disagree on zone.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marialabs/onboard/internal/domain"
	"github.com/marialabs/onboard/internal/store"
)

var (
	// ErrNoAttempt is returned when no verification is in flight for the
	// session, e.g. a resend before any code was requested.
	ErrNoAttempt = errors.New("verification: no code in flight for session")

	// ErrCodeExpired is returned when the code's TTL has elapsed.
	ErrCodeExpired = errors.New("verification: code expired, request a new one")

	// ErrResendLimit is returned once the per-session resend cap is hit.
	ErrResendLimit = errors.New("verification: maximum resends reached")

	// ErrAttemptsExhausted is returned when the failed-attempt cap is hit;
	// the code is invalidated and the caller must apply its reset policy.
	ErrAttemptsExhausted = errors.New("verification: too many failed attempts")
)

// CooldownError reports a resend rejected before the cooldown elapsed.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("verification: resend cooldown active, wait %ds", int(e.Remaining.Seconds()+0.5))
}

// MismatchError reports a wrong code together with how many attempts remain.
type MismatchError struct {
	RemainingAttempts int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("verification: incorrect code, %d attempts remaining", e.RemainingAttempts)
}

// Config holds the verification policy knobs.
type Config struct {
	CodeTTL        time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
	MaxResends     int
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		CodeTTL:        10 * time.Minute,
		ResendCooldown: 30 * time.Second,
		MaxAttempts:    3,
		MaxResends:     3,
	}
}

// Mailer delivers a code to an address.
type Mailer interface {
	SendCode(ctx context.Context, to, code string) error
}

// Service issues and checks verification codes against the repository.
type Service struct {
	repo   store.Repository
	mailer Mailer
	cfg    Config
	now    func() time.Time
}

// NewService creates a verification service.
func NewService(repo store.Repository, mailer Mailer, cfg Config) *Service {
	return &Service{
		repo:   repo,
		mailer: mailer,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RequestCode issues a fresh code for the session's email and delivers it.
// The email is resolved from the argument, not the session record, so the
// first send works before persistence has been confirmed.
func (s *Service) RequestCode(ctx context.Context, sessionID, email string) error {
	code, err := generateCode()
	if err != nil {
		return err
	}

	now := s.now()
	attempt := &domain.VerificationAttempt{
		SessionID:    sessionID,
		Code:         code,
		ExpiresAt:    now.Add(s.cfg.CodeTTL),
		LastResendAt: now,
		CreatedAt:    now,
	}
	if err := s.repo.UpsertVerification(ctx, attempt); err != nil {
		return fmt.Errorf("store verification attempt: %w", err)
	}

	if err := s.mailer.SendCode(ctx, email, code); err != nil {
		return fmt.Errorf("deliver verification code: %w", err)
	}

	slog.Info("Verification code issued", "session_id", sessionID)
	return nil
}

// VerifyCode checks a submitted code. On success the session's email is
// marked verified and the attempt is consumed. A mismatch consumes one
// attempt; exhausting the cap invalidates the code entirely.
func (s *Service) VerifyCode(ctx context.Context, sessionID, code string) error {
	attempt, err := s.repo.GetVerification(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoAttempt
	}
	if err != nil {
		return fmt.Errorf("load verification attempt: %w", err)
	}

	if attempt.Expired(s.now()) {
		return ErrCodeExpired
	}

	if code != attempt.Code {
		attempt.FailedAttempts++
		if attempt.FailedAttempts >= s.cfg.MaxAttempts {
			if err := s.repo.DeleteVerification(ctx, sessionID); err != nil {
				slog.Warn("Failed to invalidate exhausted code", "session_id", sessionID, "error", err)
			}
			return ErrAttemptsExhausted
		}
		if err := s.repo.UpsertVerification(ctx, attempt); err != nil {
			return fmt.Errorf("record failed attempt: %w", err)
		}
		return &MismatchError{RemainingAttempts: s.cfg.MaxAttempts - attempt.FailedAttempts}
	}

	verified := true
	if err := s.repo.UpdateSession(ctx, sessionID, domain.SessionUpdate{EmailVerified: &verified}); err != nil {
		return fmt.Errorf("mark session verified: %w", err)
	}
	if err := s.repo.DeleteVerification(ctx, sessionID); err != nil {
		slog.Warn("Failed to consume verification attempt", "session_id", sessionID, "error", err)
	}

	slog.Info("Email verified", "session_id", sessionID)
	return nil
}

// ResendCode issues a replacement code for the session's persisted email.
// Rejected while the cooldown is active or once the resend cap is hit.
// A successful resend resets the failed-attempt counter.
func (s *Service) ResendCode(ctx context.Context, sessionID string) error {
	attempt, err := s.repo.GetVerification(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoAttempt
	}
	if err != nil {
		return fmt.Errorf("load verification attempt: %w", err)
	}

	now := s.now()
	if remaining := attempt.CooldownRemaining(s.cfg.ResendCooldown, now); remaining > 0 {
		return &CooldownError{Remaining: remaining}
	}
	if attempt.ResendCount >= s.cfg.MaxResends {
		return ErrResendLimit
	}

	// The email must be resolvable server-side at resend time: it is
	// persisted to the session on submit, before verification succeeds.
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session for resend: %w", err)
	}
	if session.Email == "" {
		return ErrNoAttempt
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	attempt.Code = code
	attempt.ExpiresAt = now.Add(s.cfg.CodeTTL)
	attempt.LastResendAt = now
	attempt.ResendCount++
	attempt.FailedAttempts = 0
	if err := s.repo.UpsertVerification(ctx, attempt); err != nil {
		return fmt.Errorf("store resent code: %w", err)
	}

	if err := s.mailer.SendCode(ctx, session.Email, code); err != nil {
		return fmt.Errorf("deliver resent code: %w", err)
	}

	slog.Info("Verification code resent", "session_id", sessionID, "resend_count", attempt.ResendCount)
	return nil
}
