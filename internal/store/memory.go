package store

import (
	"context"
	"sync"
	"time"

	"github.com/marialabs/onboard/internal/domain"
)

// MemoryStore implements Repository with in-process maps. It backs the test
// suites; production always runs on SQLite.
type MemoryStore struct {
	mu            sync.RWMutex
	sessions      map[string]domain.Session
	verifications map[string]domain.VerificationAttempt
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string]domain.Session),
		verifications: make(map[string]domain.VerificationAttempt),
	}
}

// GetSession retrieves a session by id.
func (m *MemoryStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

// InsertSession creates a new session record.
func (m *MemoryStore) InsertSession(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; ok {
		return ErrDuplicateID
	}
	m.sessions[session.ID] = *session
	return nil
}

// UpdateSession applies a partial update to a session.
func (m *MemoryStore) UpdateSession(_ context.Context, id string, update domain.SessionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if update.Name != nil {
		session.Name = *update.Name
	}
	if update.Email != nil {
		session.Email = *update.Email
	}
	if update.EmailVerified != nil {
		session.IsEmailVerified = *update.EmailVerified
	}
	session.UpdatedAt = time.Now().UTC()
	m.sessions[id] = session
	return nil
}

// DeleteSession removes a session and its verification attempt.
func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.verifications, id)
	return nil
}

// DeleteAbandonedSessions removes incomplete sessions older than the threshold.
func (m *MemoryStore) DeleteAbandonedSessions(_ context.Context, threshold time.Duration) (int64, error) {
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, session := range m.sessions {
		if session.Abandoned(threshold, now) {
			delete(m.sessions, id)
			delete(m.verifications, id)
			removed++
		}
	}
	return removed, nil
}

// GetVerification retrieves the verification attempt for a session.
func (m *MemoryStore) GetVerification(_ context.Context, sessionID string) (*domain.VerificationAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	attempt, ok := m.verifications[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &attempt, nil
}

// UpsertVerification creates or replaces the verification attempt for a session.
func (m *MemoryStore) UpsertVerification(_ context.Context, attempt *domain.VerificationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications[attempt.SessionID] = *attempt
	return nil
}

// DeleteVerification removes the verification attempt for a session.
func (m *MemoryStore) DeleteVerification(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.verifications, sessionID)
	return nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
