package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marialabs/onboard/internal/domain"
	"github.com/marialabs/onboard/internal/store"
)

type captureMailer struct {
	sent []string
	to   []string
	err  error
}

func (m *captureMailer) SendCode(_ context.Context, to, code string) error {
	if m.err != nil {
		return m.err
	}
	m.to = append(m.to, to)
	m.sent = append(m.sent, code)
	return nil
}

func newFixture(t *testing.T) (*Service, *store.MemoryStore, *captureMailer, string) {
	t.Helper()
	repo := store.NewMemory()
	mailer := &captureMailer{}
	svc := NewService(repo, mailer, DefaultConfig())

	now := time.Now().UTC()
	sess := &domain.Session{ID: "aaaaaaaa-bbbb-4ccc-8ddd-eeeeeeeeeeee", CreatedAt: now, UpdatedAt: now}
	if err := repo.InsertSession(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	email := "jane@example.com"
	if err := repo.UpdateSession(context.Background(), sess.ID, domain.SessionUpdate{Email: &email}); err != nil {
		t.Fatal(err)
	}
	return svc, repo, mailer, sess.ID
}

func TestGenerateCode_SixDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode() error = %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), codeLength)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit %q", code, r)
			}
		}
	}
}

func TestService_RequestAndVerify(t *testing.T) {
	svc, repo, mailer, id := newFixture(t)
	ctx := context.Background()

	if err := svc.RequestCode(ctx, id, "jane@example.com"); err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}
	if len(mailer.sent) != 1 || mailer.to[0] != "jane@example.com" {
		t.Fatalf("mailer not invoked as expected: %v -> %v", mailer.to, mailer.sent)
	}

	if err := svc.VerifyCode(ctx, id, mailer.sent[0]); err != nil {
		t.Fatalf("VerifyCode() error = %v", err)
	}

	session, err := repo.GetSession(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !session.IsEmailVerified {
		t.Error("session should be verified after correct code")
	}
	if _, err := repo.GetVerification(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Error("attempt should be consumed after success")
	}
}

func TestService_VerifyMismatchCountsDown(t *testing.T) {
	svc, _, mailer, id := newFixture(t)
	ctx := context.Background()

	if err := svc.RequestCode(ctx, id, "jane@example.com"); err != nil {
		t.Fatal(err)
	}

	wrong := "000000"
	if wrong == mailer.sent[0] {
		wrong = "000001"
	}

	var mismatch *MismatchError
	err := svc.VerifyCode(ctx, id, wrong)
	if !errors.As(err, &mismatch) {
		t.Fatalf("first wrong code error = %v, want MismatchError", err)
	}
	if mismatch.RemainingAttempts != 2 {
		t.Errorf("RemainingAttempts = %d, want 2", mismatch.RemainingAttempts)
	}

	if err := svc.VerifyCode(ctx, id, wrong); !errors.As(err, &mismatch) {
		t.Fatalf("second wrong code error = %v, want MismatchError", err)
	}

	if err := svc.VerifyCode(ctx, id, wrong); !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("third wrong code error = %v, want ErrAttemptsExhausted", err)
	}

	// The exhausted code is invalidated: even the right one no longer works.
	if err := svc.VerifyCode(ctx, id, mailer.sent[0]); !errors.Is(err, ErrNoAttempt) {
		t.Errorf("post-exhaustion verify error = %v, want ErrNoAttempt", err)
	}
}

func TestService_VerifyExpiredCode(t *testing.T) {
	svc, _, mailer, id := newFixture(t)
	ctx := context.Background()

	if err := svc.RequestCode(ctx, id, "jane@example.com"); err != nil {
		t.Fatal(err)
	}

	svc.now = func() time.Time { return time.Now().UTC().Add(11 * time.Minute) }
	if err := svc.VerifyCode(ctx, id, mailer.sent[0]); !errors.Is(err, ErrCodeExpired) {
		t.Errorf("verify of expired code error = %v, want ErrCodeExpired", err)
	}
}

func TestService_ResendCooldownAndCap(t *testing.T) {
	svc, _, mailer, id := newFixture(t)
	ctx := context.Background()

	if err := svc.RequestCode(ctx, id, "jane@example.com"); err != nil {
		t.Fatal(err)
	}

	var cooldown *CooldownError
	if err := svc.ResendCode(ctx, id); !errors.As(err, &cooldown) {
		t.Fatalf("immediate resend error = %v, want CooldownError", err)
	}
	if cooldown.Remaining <= 0 || cooldown.Remaining > 30*time.Second {
		t.Errorf("cooldown remaining = %v, want within (0, 30s]", cooldown.Remaining)
	}

	// Move the clock past the cooldown; resend should issue a fresh code.
	base := time.Now().UTC()
	offset := time.Duration(0)
	svc.now = func() time.Time { return base.Add(offset) }

	for i := 1; i <= 3; i++ {
		offset += time.Minute
		if err := svc.ResendCode(ctx, id); err != nil {
			t.Fatalf("resend %d error = %v", i, err)
		}
	}
	if len(mailer.sent) != 4 {
		t.Fatalf("mailer sent %d codes, want 4 (1 request + 3 resends)", len(mailer.sent))
	}

	offset += time.Minute
	if err := svc.ResendCode(ctx, id); !errors.Is(err, ErrResendLimit) {
		t.Errorf("resend past cap error = %v, want ErrResendLimit", err)
	}
}

func TestService_ResendResetsFailedAttempts(t *testing.T) {
	svc, repo, mailer, id := newFixture(t)
	ctx := context.Background()

	if err := svc.RequestCode(ctx, id, "jane@example.com"); err != nil {
		t.Fatal(err)
	}
	wrong := "000000"
	if wrong == mailer.sent[0] {
		wrong = "000001"
	}
	var mismatch *MismatchError
	if err := svc.VerifyCode(ctx, id, wrong); !errors.As(err, &mismatch) {
		t.Fatal(err)
	}

	base := time.Now().UTC()
	svc.now = func() time.Time { return base.Add(time.Minute) }
	if err := svc.ResendCode(ctx, id); err != nil {
		t.Fatalf("resend error = %v", err)
	}

	attempt, err := repo.GetVerification(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if attempt.FailedAttempts != 0 {
		t.Errorf("FailedAttempts = %d after resend, want 0", attempt.FailedAttempts)
	}
	if attempt.Code == mailer.sent[0] {
		t.Error("resend should replace the code")
	}
}

func TestService_ResendWithoutRequest(t *testing.T) {
	svc, _, _, id := newFixture(t)
	if err := svc.ResendCode(context.Background(), id); !errors.Is(err, ErrNoAttempt) {
		t.Errorf("resend without request error = %v, want ErrNoAttempt", err)
	}
}
