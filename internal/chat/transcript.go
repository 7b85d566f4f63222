// Package chat binds UI events, the conversation state machine, and the
// session/verification services into one onboarding conversation.
package chat

import (
	"sync"

	"github.com/marialabs/onboard/internal/domain"
)

// Transcript is the ordered, append-only log of displayed messages for one
// conversation. IDs are assigned sequentially and never reused.
type Transcript struct {
	mu       sync.Mutex
	messages []domain.Message
	nextID   int64
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{nextID: 1}
}

// AppendUser appends a user-authored message. User messages never carry
// buttons and never animate.
func (t *Transcript) AppendUser(text string) domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := domain.Message{ID: t.nextID, Text: text, IsUser: true}
	t.nextID++
	t.messages = append(t.messages, msg)
	return msg
}

// AppendSystem appends a system message, optionally with buttons. The
// message starts in the typing state until MarkTypingComplete is called.
func (t *Transcript) AppendSystem(text string, buttons []domain.Button) domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := domain.Message{ID: t.nextID, Text: text, IsTyping: true}
	if len(buttons) > 0 {
		msg.Buttons = append([]domain.Button(nil), buttons...)
	}
	t.nextID++
	t.messages = append(t.messages, msg)
	return msg
}

// MarkTypingComplete marks the message delivered. Returns false if no such
// message exists.
func (t *Transcript) MarkTypingComplete(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.messages {
		if t.messages[i].ID == id {
			t.messages[i].IsTyping = false
			return true
		}
	}
	return false
}

// ClearButtonsFromAll strips buttons from every message. Called on each
// button click before the resulting message is appended, so stale buttons
// never linger in the transcript.
func (t *Transcript) ClearButtonsFromAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.messages {
		t.messages[i].Buttons = nil
	}
}

// Snapshot returns a copy of the messages in append order.
func (t *Transcript) Snapshot() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Last returns the most recent message, or false when the transcript is
// empty.
func (t *Transcript) Last() (domain.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.messages) == 0 {
		return domain.Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}
