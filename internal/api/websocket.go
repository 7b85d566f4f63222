package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/marialabs/onboard/internal/chat"
)

// WebSocketHandler streams transcript updates to the chat frontend so it
// never has to poll while Maria is "typing".
type WebSocketHandler struct {
	manager       *chat.Manager
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates the conversation stream handler.
func NewWebSocketHandler(manager *chat.Manager, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		manager:       manager,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP upgrades the connection and pushes a snapshot on every
// transcript change until the client disconnects.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	o, err := h.manager.Lookup(sessionID)
	if err != nil {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	opts := &websocket.AcceptOptions{}
	if h.isDev {
		opts.InsecureSkipVerify = true
	} else if h.allowedOrigin != "" {
		opts.OriginPatterns = []string{h.allowedOrigin}
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Debug("WebSocket accept failed", "session_id", sessionID, "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	slog.Info("Conversation stream opened", "session_id", sessionID, "ip", r.RemoteAddr)

	ctx := r.Context()
	updates := make(chan struct{}, 1)
	sub := o.Subscribe(func() {
		select {
		case updates <- struct{}{}:
		default: // An update is already pending; snapshots coalesce.
		}
	})
	defer o.Unsubscribe(sub)

	// Initial snapshot so a reconnecting client catches up immediately.
	if err := h.writeSnapshot(ctx, conn, o); err != nil {
		return
	}

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Conversation stream closed", "session_id", sessionID)
			return
		case <-updates:
			if err := h.writeSnapshot(ctx, conn, o); err != nil {
				return
			}
		case <-keepalive.C:
			if err := conn.Ping(ctx); err != nil {
				slog.Debug("Conversation stream ping failed", "session_id", sessionID, "error", err)
				return
			}
		}
	}
}

func (h *WebSocketHandler) writeSnapshot(ctx context.Context, conn *websocket.Conn, o *chat.Orchestrator) error {
	payload, err := json.Marshal(o.Snapshot())
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, payload)
}
