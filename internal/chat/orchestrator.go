package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/marialabs/onboard/internal/domain"
	"github.com/marialabs/onboard/internal/fsm"
	"github.com/marialabs/onboard/internal/session"
	"github.com/marialabs/onboard/internal/verification"
)

// buttonDebounce is how long repeated clicks on the same button group are
// ignored after a click lands.
const buttonDebounce = time.Second

var (
	namePattern  = regexp.MustCompile(`^[A-Za-z\s]+$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	codePattern  = regexp.MustCompile(`^\d{6}$`)
)

// ErrInputNotAllowed is returned when an event arrives that the current
// state does not accept. Correctly behaving clients never trigger it.
var ErrInputNotAllowed = errors.New("chat: input not accepted in current state")

// SessionService is the session identity contract the orchestrator consumes.
type SessionService interface {
	Generate(ctx context.Context) (string, error)
	Validate(ctx context.Context, id string) (session.ValidateOutcome, error)
	Persist(ctx context.Context, id string, update domain.SessionUpdate) error
	Discard(ctx context.Context, id string) error
}

// Verifier is the verification service contract the orchestrator consumes.
type Verifier interface {
	RequestCode(ctx context.Context, sessionID, email string) error
	VerifyCode(ctx context.Context, sessionID, code string) error
	ResendCode(ctx context.Context, sessionID string) error
}

// Provisioner creates the user's AI agent once onboarding completes.
type Provisioner interface {
	Provision(ctx context.Context, sessionID string) error
}

// View is the presentation-layer snapshot of one conversation.
type View struct {
	SessionID    string           `json:"session_id"`
	State        string           `json:"state"`
	Messages     []domain.Message `json:"messages"`
	InputEnabled bool             `json:"input_enabled"`
}

// Orchestrator drives one onboarding conversation. It owns exactly one FSM
// instance for the session's lifetime; the FSM is the single source of truth
// for conversation state, and the transcript holds only display state.
//
// Each user event runs to completion under the mutex, which also enforces
// the single-in-flight-call rule: input handled while a service call is
// pending simply queues behind it in arrival order.
type Orchestrator struct {
	machine     *fsm.Machine
	transcript  *Transcript
	sessions    SessionService
	verifier    Verifier
	provisioner Provisioner

	mu          sync.Mutex
	sessionID   string
	userName    string
	lastClick   string
	lastClickAt time.Time
	now         func() time.Time
	subscribers map[int]func()
	nextSubID   int
}

// NewOrchestrator constructs a conversation bound to fresh FSM and
// transcript instances. Call Start before feeding it events.
func NewOrchestrator(sessions SessionService, verifier Verifier, provisioner Provisioner) *Orchestrator {
	return &Orchestrator{
		machine:     fsm.New(),
		transcript:  NewTranscript(),
		sessions:    sessions,
		verifier:    verifier,
		provisioner: provisioner,
		now:         time.Now,
	}
}

// Subscribe registers a callback fired after every transcript change and
// returns a token for Unsubscribe. A conversation can have several watchers
// at once (second tab, a reconnect racing the old socket's close).
func (o *Orchestrator) Subscribe(fn func()) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subscribers == nil {
		o.subscribers = make(map[int]func())
	}
	o.nextSubID++
	o.subscribers[o.nextSubID] = fn
	return o.nextSubID
}

// Unsubscribe removes one watcher. Other subscriptions are unaffected.
func (o *Orchestrator) Unsubscribe(token int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.subscribers, token)
}

func (o *Orchestrator) emit() {
	o.mu.Lock()
	fns := make([]func(), 0, len(o.subscribers))
	for _, fn := range o.subscribers {
		fns = append(fns, fn)
	}
	o.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// SessionID returns the conversation's current session id. It changes only
// through the reset policy.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// Start validates a stored session id (if any), generating a fresh one when
// it is missing, expired, or refers to a completed session, then opens the
// conversation at WELCOME.
func (o *Orchestrator) Start(ctx context.Context, storedID string) error {
	defer o.emit()
	o.mu.Lock()
	defer o.mu.Unlock()

	reused := false
	if storedID != "" {
		outcome, err := o.sessions.Validate(ctx, storedID)
		if err != nil {
			return fmt.Errorf("validate stored session: %w", err)
		}
		if outcome == session.Continue {
			o.sessionID = storedID
			reused = true
		}
	}

	if !reused {
		id, err := o.sessions.Generate(ctx)
		if err != nil {
			return fmt.Errorf("generate session: %w", err)
		}
		o.sessionID = id
		if storedID != "" {
			// The presented id was a collision or invalid; say so instead
			// of silently restarting.
			o.transcript.AppendSystem(msgResetNotice, nil)
		}
	}

	o.transcript.AppendSystem(msgWelcome, nil)
	return nil
}

// TypingFinished marks a system message delivered. Delivery of the welcome
// message is what advances WELCOME to the initial options prompt.
func (o *Orchestrator) TypingFinished(messageID int64) {
	defer o.emit()
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.transcript.MarkTypingComplete(messageID) {
		return
	}
	if o.machine.State() == fsm.StateWelcome {
		if _, err := o.machine.Transition(fsm.EventWelcomeDone); err == nil {
			o.transcript.AppendSystem(msgIntro, introButtons)
		}
	}
}

// ClickButton handles a button press. Rapid repeat clicks inside the
// debounce window are dropped so double-fired UI events cannot double the
// transition.
func (o *Orchestrator) ClickButton(ctx context.Context, value string) error {
	defer o.emit()
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	if value == o.lastClick && now.Sub(o.lastClickAt) < buttonDebounce {
		return nil
	}

	event := fsm.Event(value)
	if !o.machine.CanTransition(event) {
		return fmt.Errorf("%w: button %q in state %s", ErrInputNotAllowed, value, o.machine.State())
	}

	o.lastClick = value
	o.lastClickAt = now

	o.transcript.ClearButtonsFromAll()
	o.transcript.AppendUser(fsm.DisplayValue(event))

	next, err := o.machine.Transition(event)
	if err != nil {
		return err
	}

	switch next {
	case fsm.StateCollectingName:
		o.transcript.AppendSystem(msgAskName, nil)
	case fsm.StateEngageAgain:
		o.transcript.AppendSystem(msgEngage, engageButtons)
	case fsm.StateInitOptions:
		o.transcript.AppendSystem(msgReOffer, introButtons)
	}
	return nil
}

// SubmitText handles free-text input according to the current state.
func (o *Orchestrator) SubmitText(ctx context.Context, text string) error {
	defer o.emit()
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.machine.State() {
	case fsm.StateCollectingName:
		return o.handleName(ctx, text)
	case fsm.StateCollectingEmail:
		return o.handleEmail(ctx, text)
	case fsm.StateCodeInput:
		return o.handleCode(ctx, text)
	case fsm.StateCreateBot:
		// Provisioning failed earlier; any input retries it.
		return o.provisionAgent(ctx)
	default:
		return fmt.Errorf("%w: text in state %s", ErrInputNotAllowed, o.machine.State())
	}
}

// FileAccepted is the upload collaborator's completion signal.
func (o *Orchestrator) FileAccepted(ctx context.Context, filename string) error {
	defer o.emit()
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.machine.State() != fsm.StateUploadDocs {
		return fmt.Errorf("%w: upload in state %s", ErrInputNotAllowed, o.machine.State())
	}

	o.transcript.AppendUser(filename)
	if _, err := o.machine.Transition(fsm.EventFileAccepted); err != nil {
		return err
	}
	o.transcript.AppendSystem(msgUploadOK, nil)
	return nil
}

// Snapshot returns the presentation view of the conversation.
func (o *Orchestrator) Snapshot() View {
	o.mu.Lock()
	defer o.mu.Unlock()

	state := o.machine.State()
	// CREATE_BOT stays input-enabled: after a provisioning failure the user
	// retries by sending any text.
	inputEnabled := state == fsm.StateCollectingName ||
		state == fsm.StateCollectingEmail ||
		state == fsm.StateCodeInput ||
		state == fsm.StateCreateBot
	return View{
		SessionID:    o.sessionID,
		State:        string(state),
		Messages:     o.transcript.Snapshot(),
		InputEnabled: inputEnabled,
	}
}

// handleName validates locally before any network call; invalid names never
// reach the session service.
func (o *Orchestrator) handleName(ctx context.Context, text string) error {
	name := strings.TrimSpace(text)
	o.transcript.AppendUser(text)

	if name == "" || !namePattern.MatchString(name) {
		o.transcript.AppendSystem(msgNameInvalid, nil)
		return nil
	}

	issuedFor := o.sessionID
	err := o.sessions.Persist(ctx, issuedFor, domain.SessionUpdate{Name: &name})
	if o.sessionID != issuedFor {
		// Session was reset while the call was in flight; drop the result.
		return nil
	}
	if err != nil {
		slog.Warn("Name persist failed", "session_id", issuedFor, "error", err)
		o.transcript.AppendSystem(msgServiceError, nil)
		return nil
	}

	o.userName = name
	if _, err := o.machine.Transition(fsm.EventNameAccepted); err != nil {
		return err
	}
	o.transcript.AppendSystem(fmt.Sprintf(msgAskUpload, firstName(name)), nil)
	return nil
}

// handleEmail persists the email on submit (before verification succeeds)
// so a later resend can resolve it server-side, then requests the first
// code.
func (o *Orchestrator) handleEmail(ctx context.Context, text string) error {
	email := strings.TrimSpace(text)
	o.transcript.AppendUser(text)

	if !emailPattern.MatchString(email) {
		o.transcript.AppendSystem(msgEmailInvalid, nil)
		return nil
	}

	if _, err := o.machine.Transition(fsm.EventEmailAccepted); err != nil {
		return err
	}
	o.transcript.AppendSystem(fmt.Sprintf(msgSendingCode, email), nil)

	issuedFor := o.sessionID
	err := o.sessions.Persist(ctx, issuedFor, domain.SessionUpdate{Email: &email})
	if err == nil {
		err = o.verifier.RequestCode(ctx, issuedFor, email)
	}
	if o.sessionID != issuedFor {
		return nil
	}
	if err != nil {
		slog.Warn("Verification send failed", "session_id", issuedFor, "error", err)
		if _, terr := o.machine.Transition(fsm.EventSendFailed); terr != nil {
			return terr
		}
		o.transcript.AppendSystem(msgServiceError, nil)
		return nil
	}

	if _, err := o.machine.Transition(fsm.EventCodeSent); err != nil {
		return err
	}
	o.transcript.AppendSystem(msgCodeSent, nil)
	return nil
}

// handleCode processes code input: "resend", a 6-digit code, or garbage.
// Malformed input is rejected locally and consumes no attempt.
func (o *Orchestrator) handleCode(ctx context.Context, text string) error {
	input := strings.TrimSpace(text)
	o.transcript.AppendUser(text)

	if strings.EqualFold(input, "resend") {
		return o.handleResend(ctx)
	}

	if !codePattern.MatchString(input) {
		o.transcript.AppendSystem(msgCodeFormat, nil)
		return nil
	}

	issuedFor := o.sessionID
	err := o.verifier.VerifyCode(ctx, issuedFor, input)
	if o.sessionID != issuedFor {
		return nil
	}

	switch {
	case err == nil:
		if _, terr := o.machine.Transition(fsm.EventCodeVerified); terr != nil {
			return terr
		}
		o.transcript.AppendSystem(msgVerified, nil)
		if _, terr := o.machine.Transition(fsm.EventProvisionBot); terr != nil {
			return terr
		}
		return o.provisionAgent(ctx)

	case errors.Is(err, verification.ErrAttemptsExhausted):
		return o.resetConversation(ctx)

	case isBusinessRuleError(err):
		// Surface the service's own message verbatim.
		o.transcript.AppendSystem(err.Error(), nil)
		return nil

	default:
		slog.Warn("Code verification failed", "session_id", issuedFor, "error", err)
		o.transcript.AppendSystem(msgServiceError, nil)
		return nil
	}
}

func (o *Orchestrator) handleResend(ctx context.Context) error {
	issuedFor := o.sessionID
	err := o.verifier.ResendCode(ctx, issuedFor)
	if o.sessionID != issuedFor {
		return nil
	}

	switch {
	case err == nil:
		o.transcript.AppendSystem(msgCodeResent, nil)
	case isBusinessRuleError(err):
		o.transcript.AppendSystem(err.Error(), nil)
	default:
		slog.Warn("Resend failed", "session_id", issuedFor, "error", err)
		o.transcript.AppendSystem(msgServiceError, nil)
	}
	return nil
}

// provisionAgent drives CREATE_BOT to END_WORKFLOW. On failure the state
// stays at CREATE_BOT and the user retries manually; there is no automatic
// backoff against the provisioning collaborator.
func (o *Orchestrator) provisionAgent(ctx context.Context) error {
	issuedFor := o.sessionID
	err := o.provisioner.Provision(ctx, issuedFor)
	if o.sessionID != issuedFor {
		return nil
	}
	if err != nil {
		slog.Warn("Agent provisioning failed", "session_id", issuedFor, "error", err)
		o.transcript.AppendSystem(msgServiceError, nil)
		return nil
	}

	if _, err := o.machine.Transition(fsm.EventBotProvisioned); err != nil {
		return err
	}
	o.transcript.AppendSystem(msgBotReady, nil)
	return nil
}

// resetConversation applies the session-reset policy: discard the current
// id, mint a fresh session, rewind the FSM to WELCOME, and tell the user
// why.
func (o *Orchestrator) resetConversation(ctx context.Context) error {
	oldID := o.sessionID
	if err := o.sessions.Discard(ctx, oldID); err != nil {
		slog.Warn("Failed to discard session during reset", "session_id", oldID, "error", err)
	}

	id, err := o.sessions.Generate(ctx)
	if err != nil {
		o.transcript.AppendSystem(msgServiceError, nil)
		return fmt.Errorf("reset conversation: %w", err)
	}

	o.sessionID = id
	o.userName = ""
	o.machine.Reset()
	o.transcript.AppendSystem(msgResetNotice, nil)
	o.transcript.AppendSystem(msgWelcome, nil)
	slog.Info("Conversation reset", "old_session_id", oldID, "new_session_id", id)
	return nil
}

// isBusinessRuleError reports whether the verification service rejected the
// request for a policy reason whose message should be shown verbatim.
func isBusinessRuleError(err error) bool {
	var cooldown *verification.CooldownError
	var mismatch *verification.MismatchError
	return errors.As(err, &cooldown) ||
		errors.As(err, &mismatch) ||
		errors.Is(err, verification.ErrResendLimit) ||
		errors.Is(err, verification.ErrCodeExpired) ||
		errors.Is(err, verification.ErrNoAttempt)
}

// firstName returns the leading word of a full name for friendlier prompts.
func firstName(name string) string {
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}
