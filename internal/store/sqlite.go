package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marialabs/onboard/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		email_verified INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

	CREATE TABLE IF NOT EXISTS verification_attempts (
		session_id TEXT PRIMARY KEY REFERENCES sessions(id),
		code TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		failed_attempts INTEGER NOT NULL DEFAULT 0,
		last_resend_at INTEGER NOT NULL,
		resend_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetSession retrieves a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT id, name, email, email_verified, created_at, updated_at
		FROM sessions WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	var session domain.Session
	var verified int
	var createdAt, updatedAt int64

	err := row.Scan(&session.ID, &session.Name, &session.Email, &verified, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.IsEmailVerified = verified != 0
	session.CreatedAt = time.Unix(createdAt, 0).UTC()
	session.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &session, nil
}

// InsertSession creates a new session record.
func (s *SQLiteStore) InsertSession(ctx context.Context, session *domain.Session) error {
	query := `
	INSERT INTO sessions (id, name, email, email_verified, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	verified := 0
	if session.IsEmailVerified {
		verified = 1
	}

	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.Name, session.Email, verified,
		session.CreatedAt.Unix(), session.UpdatedAt.Unix(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSession applies a partial update to a session.
func (s *SQLiteStore) UpdateSession(ctx context.Context, id string, update domain.SessionUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC().Unix()}

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *update.Email)
	}
	if update.EmailVerified != nil {
		verified := 0
		if *update.EmailVerified {
			verified = 1
		}
		sets = append(sets, "email_verified = ?")
		args = append(args, verified)
	}

	query := "UPDATE sessions SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession removes a session and its verification attempt.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM verification_attempts WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete verification attempt: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteAbandonedSessions removes incomplete sessions older than the threshold.
func (s *SQLiteStore) DeleteAbandonedSessions(ctx context.Context, threshold time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-threshold).Unix()

	// A session is complete once it has a name and a verified email;
	// those are never swept regardless of age.
	where := `updated_at < ? AND NOT (name != '' AND email != '' AND email_verified = 1)`

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM verification_attempts WHERE session_id IN (SELECT id FROM sessions WHERE `+where+`)`,
		cutoff,
	); err != nil {
		return 0, fmt.Errorf("sweep verification attempts: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE `+where, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep abandoned sessions: %w", err)
	}
	return result.RowsAffected()
}

// GetVerification retrieves the verification attempt for a session.
func (s *SQLiteStore) GetVerification(ctx context.Context, sessionID string) (*domain.VerificationAttempt, error) {
	query := `
		SELECT session_id, code, expires_at, failed_attempts, last_resend_at, resend_count, created_at
		FROM verification_attempts WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var attempt domain.VerificationAttempt
	var expiresAt, lastResendAt, createdAt int64

	err := row.Scan(
		&attempt.SessionID, &attempt.Code, &expiresAt,
		&attempt.FailedAttempts, &lastResendAt, &attempt.ResendCount, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan verification row: %w", err)
	}

	attempt.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	attempt.LastResendAt = time.Unix(lastResendAt, 0).UTC()
	attempt.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &attempt, nil
}

// UpsertVerification creates or replaces the verification attempt for a session.
func (s *SQLiteStore) UpsertVerification(ctx context.Context, attempt *domain.VerificationAttempt) error {
	query := `
		INSERT INTO verification_attempts (
			session_id, code, expires_at, failed_attempts,
			last_resend_at, resend_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			code = excluded.code,
			expires_at = excluded.expires_at,
			failed_attempts = excluded.failed_attempts,
			last_resend_at = excluded.last_resend_at,
			resend_count = excluded.resend_count`

	_, err := s.db.ExecContext(ctx, query,
		attempt.SessionID, attempt.Code, attempt.ExpiresAt.Unix(),
		attempt.FailedAttempts, attempt.LastResendAt.Unix(),
		attempt.ResendCount, attempt.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert verification attempt: %w", err)
	}
	return nil
}

// DeleteVerification removes the verification attempt for a session.
func (s *SQLiteStore) DeleteVerification(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM verification_attempts WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete verification attempt: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		slog.Debug("DeleteVerification affected 0 rows", "session_id", sessionID)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// isUniqueConstraintError checks for a SQLite primary-key violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLITE_CONSTRAINT")
}
