// Package auth owns the signed-in session: persisting it between runs and
// obtaining, refreshing and discarding it against the backend.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/bookbazaar/bazaar/pkg/domain"
)

// Store keeps the session as JSON in a single file.
type Store struct {
	path string
	log  *zap.Logger
}

// NewStore returns a store backed by path.
func NewStore(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log}
}

// Path returns the session file location.
func (s *Store) Path() string { return s.path }

// Load returns the stored session, or nil when none is stored. A session that
// cannot be parsed or carries no plausible refresh token is deleted and
// treated as absent.
func (s *Store) Load() (*domain.Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth.Store.Load: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.log.Warn("discarding unreadable session", zap.String("path", s.path), zap.Error(err))
		return nil, s.Clear()
	}
	if len(sess.RefreshToken) < domain.MinRefreshTokenLen || sess.AccessToken == "" {
		s.log.Warn("discarding corrupted session", zap.String("path", s.path),
			zap.Int("refresh_token_len", len(sess.RefreshToken)))
		return nil, s.Clear()
	}
	return &sess, nil
}

// Save writes the session with owner-only permissions.
func (s *Store) Save(sess *domain.Session) error {
	if sess == nil {
		return s.Clear()
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("auth.Store.Save: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("auth.Store.Save: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("auth.Store.Save: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("auth.Store.Save: %w", err)
	}
	return nil
}

// Clear removes the stored session. Clearing an absent session is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("auth.Store.Clear: %w", err)
	}
	return nil
}
