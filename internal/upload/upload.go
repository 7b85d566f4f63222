// Package upload is the document-upload collaborator. It validates and
// stores incoming files, then signals acceptance to the conversation.
package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrFileTooLarge is returned when the upload exceeds the size limit.
	ErrFileTooLarge = errors.New("upload: file exceeds size limit")

	// ErrTypeNotAllowed is returned for file extensions outside the allow
	// list.
	ErrTypeNotAllowed = errors.New("upload: file type not allowed")
)

// Config holds upload validation and storage settings.
type Config struct {
	Dir         string
	MaxBytes    int64
	AllowedExts []string
}

// DefaultConfig returns the production upload policy.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		MaxBytes:    10 << 20, // 10MB
		AllowedExts: []string{".pdf", ".png", ".jpg", ".jpeg"},
	}
}

// Store validates and persists uploaded documents to local disk.
type Store struct {
	cfg Config
}

// NewStore creates the upload store, ensuring the target directory exists.
func NewStore(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{cfg: cfg}, nil
}

// Accept validates and stores one file, returning the stored path.
// size is the declared length; the copy is capped at MaxBytes regardless.
func (s *Store) Accept(sessionID, filename string, size int64, r io.Reader) (string, error) {
	if size > s.cfg.MaxBytes {
		return "", ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !s.extAllowed(ext) {
		return "", fmt.Errorf("%w: %s", ErrTypeNotAllowed, ext)
	}

	dest := filepath.Join(s.cfg.Dir, sessionID+"-"+uuid.NewString()+ext)
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("Failed to close upload file", "path", dest, "error", closeErr)
		}
	}()

	written, err := io.Copy(f, io.LimitReader(r, s.cfg.MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	if written > s.cfg.MaxBytes {
		if removeErr := os.Remove(dest); removeErr != nil {
			slog.Warn("Failed to remove oversized upload", "path", dest, "error", removeErr)
		}
		return "", ErrFileTooLarge
	}

	slog.Info("Document accepted", "session_id", sessionID, "file", filename, "bytes", written)
	return dest, nil
}

// Discard removes a stored file whose upload was rejected downstream, so a
// conversation that refuses the document leaves nothing on disk.
func (s *Store) Discard(path string) {
	if err := os.Remove(path); err != nil {
		slog.Warn("Failed to discard rejected upload", "path", path, "error", err)
	}
}

func (s *Store) extAllowed(ext string) bool {
	for _, allowed := range s.cfg.AllowedExts {
		if ext == allowed {
			return true
		}
	}
	return false
}
