package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/marialabs/onboard/internal/session"
)

func TestManager_ConcurrentStartSharesConversation(t *testing.T) {
	sessions := &fakeSessions{validateOutcome: session.Continue}
	m := NewManager(sessions, &fakeVerifier{}, &fakeProvisioner{})

	storedID := "99999999-8888-4777-8666-555555555555"

	const starters = 8
	results := make([]*Orchestrator, starters)
	var wg sync.WaitGroup
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, err := m.Start(context.Background(), storedID)
			if err != nil {
				t.Errorf("Start() error = %v", err)
				return
			}
			results[i] = o
		}(i)
	}
	wg.Wait()

	for i := 1; i < starters; i++ {
		if results[i] != results[0] {
			t.Fatal("racing starts with the same stored id must share one conversation")
		}
	}

	m.mu.RLock()
	registered := len(m.conversations)
	m.mu.RUnlock()
	if registered != 1 {
		t.Errorf("registered conversations = %d, want 1", registered)
	}
}

func TestManager_LookupAfterSync(t *testing.T) {
	sessions := &fakeSessions{}
	m := NewManager(sessions, &fakeVerifier{}, &fakeProvisioner{})

	o, err := m.Start(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	oldID := o.SessionID()

	// Simulate the reset policy re-keying the conversation.
	o.sessionID = "11111111-2222-4333-8444-999999999999"
	m.Sync(oldID, o)

	if _, err := m.Lookup(oldID); err == nil {
		t.Error("old id should no longer resolve after a re-key")
	}
	got, err := m.Lookup(o.SessionID())
	if err != nil {
		t.Fatalf("Lookup(new id) error = %v", err)
	}
	if got != o {
		t.Error("new id should resolve to the same conversation")
	}
}
