package chat

import (
	"testing"

	"github.com/marialabs/onboard/internal/domain"
)

func TestTranscript_AppendOrdering(t *testing.T) {
	tr := NewTranscript()

	user := tr.AppendUser("hello")
	system := tr.AppendSystem("hi there", nil)
	tr.MarkTypingComplete(system.ID)

	messages := tr.Snapshot()
	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(messages))
	}
	if messages[0].ID != user.ID || messages[1].ID != system.ID {
		t.Error("marking typing complete must not reorder entries")
	}

	var prev int64
	for _, m := range messages {
		if m.ID <= prev {
			t.Errorf("ids not strictly increasing: %d after %d", m.ID, prev)
		}
		prev = m.ID
	}
}

func TestTranscript_TypingLifecycle(t *testing.T) {
	tr := NewTranscript()

	system := tr.AppendSystem("typing...", nil)
	if !system.IsTyping {
		t.Error("system messages should start in the typing state")
	}

	if !tr.MarkTypingComplete(system.ID) {
		t.Fatal("MarkTypingComplete() = false for existing message")
	}
	if got := tr.Snapshot()[0]; got.IsTyping {
		t.Error("message should be delivered after MarkTypingComplete")
	}

	if tr.MarkTypingComplete(999) {
		t.Error("MarkTypingComplete() = true for unknown id")
	}
}

func TestTranscript_UserMessagesNeverType(t *testing.T) {
	tr := NewTranscript()
	msg := tr.AppendUser("hi")
	if msg.IsTyping {
		t.Error("user messages are delivered immediately")
	}
	if msg.Buttons != nil {
		t.Error("user messages never carry buttons")
	}
}

func TestTranscript_ClearButtonsFromAll(t *testing.T) {
	tr := NewTranscript()

	buttons := []domain.Button{{Label: "Yes", Value: "yes"}, {Label: "No", Value: "no"}}
	tr.AppendSystem("first prompt", buttons)
	tr.AppendUser("answer")
	tr.AppendSystem("second prompt", buttons)

	tr.ClearButtonsFromAll()

	for _, m := range tr.Snapshot() {
		if len(m.Buttons) != 0 {
			t.Errorf("message %d still has buttons after ClearButtonsFromAll", m.ID)
		}
	}
}

func TestTranscript_SnapshotIsACopy(t *testing.T) {
	tr := NewTranscript()
	tr.AppendSystem("prompt", []domain.Button{{Label: "Yes", Value: "yes"}})

	snap := tr.Snapshot()
	snap[0].Text = "mutated"

	if tr.Snapshot()[0].Text != "prompt" {
		t.Error("mutating a snapshot must not affect the transcript")
	}
}
