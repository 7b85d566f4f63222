package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/marialabs/onboard/internal/store"
)

const sweepInterval = time.Minute

// StartSweeper runs a background goroutine that periodically removes
// abandoned incomplete sessions. Validation also sweeps opportunistically;
// this worker covers clients that never come back.
func StartSweeper(ctx context.Context, repo store.Repository, abandonTTL time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", sweepInterval, "abandon_ttl", abandonTTL)

		for {
			select {
			case <-ticker.C:
				removed, err := repo.DeleteAbandonedSessions(ctx, abandonTTL)
				if err != nil {
					slog.Error("Session sweeper failed", "error", err)
					continue
				}
				if removed > 0 {
					slog.Info("Session sweeper removed abandoned sessions", "count", removed)
				}
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
