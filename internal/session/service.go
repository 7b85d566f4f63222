// Package session implements the session identity service: it issues,
// validates, and expires the opaque ids that key an onboarding conversation.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/marialabs/onboard/internal/domain"
	"github.com/marialabs/onboard/internal/store"
)

// maxGenerateRetries bounds id-collision retries before Generate gives up.
const maxGenerateRetries = 3

// ErrGenerateExhausted is returned when Generate keeps colliding.
var ErrGenerateExhausted = errors.New("session: could not allocate a unique id")

var idPattern = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)

// ValidateOutcome classifies what a presented session id refers to.
type ValidateOutcome string

const (
	// Continue means the session exists, is incomplete and unexpired;
	// the conversation may resume against it.
	Continue ValidateOutcome = "continue"
	// Collision means the session is already complete; the caller must
	// discard the id and generate a fresh one.
	Collision ValidateOutcome = "collision"
	// Invalid means the id is malformed, unknown, or expired.
	Invalid ValidateOutcome = "invalid"
)

// Service issues and validates session identities against the repository.
type Service struct {
	repo       store.Repository
	abandonTTL time.Duration
}

// NewService creates a session identity service. abandonTTL is the
// incomplete-session expiry threshold.
func NewService(repo store.Repository, abandonTTL time.Duration) *Service {
	return &Service{repo: repo, abandonTTL: abandonTTL}
}

// Generate creates and persists a new empty session, retrying on id
// collision up to a fixed bound.
func (s *Service) Generate(ctx context.Context) (string, error) {
	for i := 0; i < maxGenerateRetries; i++ {
		now := time.Now().UTC()
		session := &domain.Session{
			ID:        uuid.NewString(),
			CreatedAt: now,
			UpdatedAt: now,
		}

		err := s.repo.InsertSession(ctx, session)
		if err == nil {
			return session.ID, nil
		}
		if errors.Is(err, store.ErrDuplicateID) {
			slog.Warn("session id collision on generate", "attempt", i+1)
			continue
		}
		return "", fmt.Errorf("generate session: %w", err)
	}
	return "", ErrGenerateExhausted
}

// Validate classifies a presented session id. It runs the abandonment sweep
// first, so an expired incomplete session reports Invalid rather than
// Continue.
func (s *Service) Validate(ctx context.Context, id string) (ValidateOutcome, error) {
	if _, err := s.repo.DeleteAbandonedSessions(ctx, s.abandonTTL); err != nil {
		// Sweep failure must not block validation; log and continue.
		slog.Warn("abandonment sweep failed during validate", "error", err)
	}

	if !idPattern.MatchString(id) {
		return Invalid, nil
	}

	session, err := s.repo.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Invalid, nil
	}
	if err != nil {
		return Invalid, fmt.Errorf("validate session: %w", err)
	}

	if session.IsComplete() {
		return Collision, nil
	}
	if session.Abandoned(s.abandonTTL, time.Now().UTC()) {
		return Invalid, nil
	}
	return Continue, nil
}

// Persist applies a partial profile update to a session. It tolerates being
// called with name only and later with email only.
func (s *Service) Persist(ctx context.Context, id string, update domain.SessionUpdate) error {
	if err := s.repo.UpdateSession(ctx, id, update); err != nil {
		return fmt.Errorf("persist session %s: %w", id, err)
	}
	return nil
}

// Discard removes a session outright, used by the orchestrator's reset
// policy before generating a replacement.
func (s *Service) Discard(ctx context.Context, id string) error {
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("discard session %s: %w", id, err)
	}
	return nil
}
