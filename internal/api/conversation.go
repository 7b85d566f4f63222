package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marialabs/onboard/internal/chat"
	"github.com/marialabs/onboard/internal/upload"
)

// maxRequestBodySize caps JSON request bodies (64KB).
const maxRequestBodySize = 64 << 10

// ConversationHandler exposes the chat orchestration over HTTP.
type ConversationHandler struct {
	manager *chat.Manager
	uploads *upload.Store
}

// NewConversationHandler creates the conversation handler.
func NewConversationHandler(manager *chat.Manager, uploads *upload.Store) *ConversationHandler {
	return &ConversationHandler{manager: manager, uploads: uploads}
}

// RegisterRoutes mounts the conversation endpoints.
func (h *ConversationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/conversation", func(r chi.Router) {
		r.Post("/", h.handleStart)
		r.Get("/{sessionID}", h.handleSnapshot)
		r.Post("/{sessionID}/message", h.handleMessage)
		r.Post("/{sessionID}/button", h.handleButton)
		r.Post("/{sessionID}/typing", h.handleTyping)
		r.Post("/{sessionID}/upload", h.handleUpload)
	})
}

func (h *ConversationHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
	}
	// An empty body means "no stored session"; anything else must parse.
	if err := decodeBody(w, r, &payload); err != nil && !errors.Is(err, io.EOF) {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.manager.Start(r.Context(), payload.SessionID)
	if err != nil {
		slog.Error("Failed to start conversation", "error", err)
		Error(w, http.StatusServiceUnavailable, "could not start conversation")
		return
	}

	JSON(w, http.StatusCreated, o.Snapshot())
}

func (h *ConversationHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, o.Snapshot())
}

func (h *ConversationHandler) handleMessage(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := decodeBody(w, r, &payload); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := o.SessionID()
	err := o.SubmitText(r.Context(), payload.Text)
	h.manager.Sync(sessionID, o)

	if errors.Is(err, chat.ErrInputNotAllowed) {
		Error(w, http.StatusConflict, "text input not expected right now")
		return
	}
	if err != nil {
		slog.Error("Message handling failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "message handling failed")
		return
	}
	JSON(w, http.StatusOK, o.Snapshot())
}

func (h *ConversationHandler) handleButton(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		Value string `json:"value"`
	}
	if err := decodeBody(w, r, &payload); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := o.SessionID()
	err := o.ClickButton(r.Context(), payload.Value)
	h.manager.Sync(sessionID, o)

	if errors.Is(err, chat.ErrInputNotAllowed) {
		Error(w, http.StatusConflict, "button not available right now")
		return
	}
	if err != nil {
		slog.Error("Button handling failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "button handling failed")
		return
	}
	JSON(w, http.StatusOK, o.Snapshot())
}

func (h *ConversationHandler) handleTyping(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		MessageID int64 `json:"message_id"`
	}
	if err := decodeBody(w, r, &payload); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o.TypingFinished(payload.MessageID)
	JSON(w, http.StatusOK, o.Snapshot())
}

func (h *ConversationHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		Error(w, http.StatusBadRequest, "document file is required")
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Debug("Failed to close upload body", "error", closeErr)
		}
	}()

	storedPath, err := h.uploads.Accept(o.SessionID(), header.Filename, header.Size, file)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrFileTooLarge):
			Error(w, http.StatusRequestEntityTooLarge, "file exceeds the size limit")
		case errors.Is(err, upload.ErrTypeNotAllowed):
			Error(w, http.StatusUnsupportedMediaType, "file type not allowed")
		default:
			slog.Error("Upload failed", "session_id", o.SessionID(), "error", err)
			Error(w, http.StatusInternalServerError, "upload failed")
		}
		return
	}

	if err := o.FileAccepted(r.Context(), header.Filename); err != nil {
		if errors.Is(err, chat.ErrInputNotAllowed) {
			// The conversation refused the document; don't keep the file.
			h.uploads.Discard(storedPath)
			Error(w, http.StatusConflict, "upload not expected right now")
			return
		}
		slog.Error("Upload handoff failed", "session_id", o.SessionID(), "error", err)
		Error(w, http.StatusInternalServerError, "upload handoff failed")
		return
	}
	JSON(w, http.StatusOK, o.Snapshot())
}

func (h *ConversationHandler) lookup(w http.ResponseWriter, r *http.Request) (*chat.Orchestrator, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	o, err := h.manager.Lookup(sessionID)
	if err != nil {
		Error(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}
	return o, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}
