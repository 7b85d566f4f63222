package chat

import (
	"context"
	"errors"
	"sync"
)

// ErrConversationNotFound is returned when no conversation exists for a
// session id.
var ErrConversationNotFound = errors.New("chat: conversation not found")

// Manager owns the live orchestrators, one per active session. It is the
// single construction point for FSM + orchestrator pairs, so no UI layer
// can ever hold a desynchronized machine of its own.
type Manager struct {
	sessions    SessionService
	verifier    Verifier
	provisioner Provisioner

	mu            sync.RWMutex
	conversations map[string]*Orchestrator
}

// NewManager creates an empty conversation registry.
func NewManager(sessions SessionService, verifier Verifier, provisioner Provisioner) *Manager {
	return &Manager{
		sessions:      sessions,
		verifier:      verifier,
		provisioner:   provisioner,
		conversations: make(map[string]*Orchestrator),
	}
}

// Start opens a conversation. If storedID names a live conversation the
// existing orchestrator is returned; otherwise a new FSM + orchestrator
// pair is constructed and registered under the session id it ends up with.
//
// The lock is held across lookup and construction so two racing starts
// with the same stored id cannot each register their own orchestrator.
func (m *Manager) Start(ctx context.Context, storedID string) (*Orchestrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if storedID != "" {
		if existing, ok := m.conversations[storedID]; ok {
			return existing, nil
		}
	}

	o := NewOrchestrator(m.sessions, m.verifier, m.provisioner)
	if err := o.Start(ctx, storedID); err != nil {
		return nil, err
	}

	m.conversations[o.SessionID()] = o
	return o, nil
}

// Lookup finds the conversation for a session id.
func (m *Manager) Lookup(sessionID string) (*Orchestrator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.conversations[sessionID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return o, nil
}

// Sync re-keys a conversation whose session id changed through the reset
// policy. Callers invoke it after every orchestrator operation.
func (m *Manager) Sync(oldID string, o *Orchestrator) {
	newID := o.SessionID()
	if newID == oldID {
		return
	}
	m.mu.Lock()
	delete(m.conversations, oldID)
	m.conversations[newID] = o
	m.mu.Unlock()
}

// Remove drops a conversation, e.g. once it reaches END_WORKFLOW and the
// client disconnects.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	delete(m.conversations, sessionID)
	m.mu.Unlock()
}
