// Package fsm implements the onboarding conversation state machine.
//
// The machine is pure: it decides transitions and nothing else. Side effects
// (service calls, transcript writes) belong to the chat orchestrator.
package fsm

import (
	"errors"
	"fmt"
	"sync"
)

// State is a named conversation state.
type State string

// Conversation states.
const (
	StateWelcome             State = "WELCOME"
	StateInitOptions         State = "INIT_OPTIONS"
	StateEngageAgain         State = "ENGAGE_AGAIN"
	StateCollectingName      State = "COLLECTING_NAME"
	StateUploadDocs          State = "UPLOAD_DOCS"
	StateCollectingEmail     State = "COLLECTING_EMAIL"
	StateVerificationSending State = "EMAIL_VERIFICATION_SENDING"
	StateCodeInput           State = "EMAIL_CODE_INPUT"
	StateEmailVerified       State = "EMAIL_VERIFIED"
	StateCreateBot           State = "CREATE_BOT"
	StateEndWorkflow         State = "END_WORKFLOW"
)

// Event drives a transition.
type Event string

// Conversation events. Button-backed events double as button values on the
// wire; DisplayValue maps them to the text echoed as the user's choice.
const (
	EventWelcomeDone    Event = "welcome_done"
	EventAcceptIntro    Event = "yes"
	EventDeclineIntro   Event = "no"
	EventEngageGo       Event = "lets_go"
	EventEngageLater    Event = "maybe_later"
	EventNameAccepted   Event = "name_accepted"
	EventFileAccepted   Event = "file_accepted"
	EventEmailAccepted  Event = "email_accepted"
	EventCodeSent       Event = "code_sent"
	EventSendFailed     Event = "send_failed"
	EventCodeVerified   Event = "code_verified"
	EventProvisionBot   Event = "provision_bot"
	EventBotProvisioned Event = "bot_provisioned"
)

// ErrInvalidTransition is returned when the current state has no entry for
// the given event. The machine stays put; it never crashes or jumps states.
var ErrInvalidTransition = errors.New("fsm: no transition for event in current state")

// transitions is the full (state, event) -> next state table.
var transitions = map[State]map[Event]State{
	StateWelcome: {
		EventWelcomeDone: StateInitOptions,
	},
	StateInitOptions: {
		EventAcceptIntro:  StateCollectingName,
		EventDeclineIntro: StateEngageAgain,
	},
	StateEngageAgain: {
		EventEngageGo:    StateCollectingName,
		EventEngageLater: StateInitOptions,
	},
	StateCollectingName: {
		EventNameAccepted: StateUploadDocs,
	},
	StateUploadDocs: {
		EventFileAccepted: StateCollectingEmail,
	},
	StateCollectingEmail: {
		EventEmailAccepted: StateVerificationSending,
	},
	StateVerificationSending: {
		EventCodeSent:   StateCodeInput,
		EventSendFailed: StateCollectingEmail,
	},
	StateCodeInput: {
		EventCodeVerified: StateEmailVerified,
	},
	StateEmailVerified: {
		EventProvisionBot: StateCreateBot,
	},
	StateCreateBot: {
		EventBotProvisioned: StateEndWorkflow,
	},
	StateEndWorkflow: {},
}

// displayValues maps button events to the human-readable text echoed into
// the transcript as the user's spoken choice.
var displayValues = map[Event]string{
	EventAcceptIntro:  "Yes, let's do it",
	EventDeclineIntro: "Not right now",
	EventEngageGo:     "Let's go!",
	EventEngageLater:  "Maybe later",
}

// Machine holds the single current state for one conversation. One machine
// is constructed per session lifetime and injected into the orchestrator;
// UI layers must never re-instantiate their own.
type Machine struct {
	mu      sync.Mutex
	current State
}

// New creates a machine in the initial WELCOME state.
func New() *Machine {
	return &Machine{current: StateWelcome}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CanTransition reports whether the event has a table entry for the current
// state.
func (m *Machine) CanTransition(event Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := transitions[m.current][event]
	return ok
}

// Transition applies the event. On an invalid event the state is unchanged
// and ErrInvalidTransition is returned.
func (m *Machine) Transition(event Event) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, ok := transitions[m.current][event]
	if !ok {
		return m.current, fmt.Errorf("%w: state=%s event=%s", ErrInvalidTransition, m.current, event)
	}
	m.current = next
	return next, nil
}

// Reset returns the machine to WELCOME. Used by the session-reset policy.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = StateWelcome
}

// DisplayValue maps a button event to the text shown as the user's choice.
// Returns the raw event string for events without a display mapping.
func DisplayValue(event Event) string {
	if text, ok := displayValues[event]; ok {
		return text
	}
	return string(event)
}
