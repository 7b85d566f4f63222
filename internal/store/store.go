// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/marialabs/onboard/internal/domain"
)

var (
	// ErrDuplicateID is returned by InsertSession when the id already exists.
	// The session identity service uses it to drive collision retries.
	ErrDuplicateID = errors.New("store: session id already exists")

	// ErrNotFound is returned when a session or verification attempt does
	// not exist.
	ErrNotFound = errors.New("store: not found")
)

// Repository defines the interface for persisting sessions and their
// verification attempts.
type Repository interface {
	// GetSession retrieves a session by id. Returns ErrNotFound if absent.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// InsertSession creates a new empty session record.
	// Returns ErrDuplicateID if the id is already taken.
	InsertSession(ctx context.Context, session *domain.Session) error

	// UpdateSession applies a partial update. Nil fields are untouched.
	// Returns ErrNotFound if the session does not exist.
	UpdateSession(ctx context.Context, id string, update domain.SessionUpdate) error

	// DeleteSession removes a session and any verification attempt tied to it.
	DeleteSession(ctx context.Context, id string) error

	// DeleteAbandonedSessions removes incomplete sessions whose updated_at is
	// older than the threshold, along with their verification attempts.
	// Returns the number of sessions removed.
	DeleteAbandonedSessions(ctx context.Context, threshold time.Duration) (int64, error)

	// GetVerification retrieves the verification attempt for a session.
	// Returns ErrNotFound if none is in flight.
	GetVerification(ctx context.Context, sessionID string) (*domain.VerificationAttempt, error)

	// UpsertVerification creates or replaces the verification attempt for a
	// session.
	UpsertVerification(ctx context.Context, attempt *domain.VerificationAttempt) error

	// DeleteVerification removes the verification attempt for a session.
	DeleteVerification(ctx context.Context, sessionID string) error

	// Ping verifies backing-store connectivity.
	Ping(ctx context.Context) error

	// Close releases the backing store.
	Close() error
}
