package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Store handles session persistence. All file access is serialized through an
// internal mutex so concurrent collaborators (sync client, UI) never observe a
// partially written session.
type Store struct {
	path string
	mu   sync.Mutex
	log  zerolog.Logger
}

// NewStore creates a session store backed by the given file path.
func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{
		path: path,
		log:  log.With().Str("component", "session-store").Logger(),
	}
}

// DefaultPath returns the default session file location for the current user.
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "taura", "session.json")
}

// Path returns the session file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the stored session. A missing file is not an error and yields a
// nil session. A file that exists but fails to parse is treated the same way:
// recovery in both cases is re-authentication, so a corrupt session is only
// worth a diagnostic log line.
func (s *Store) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.log.Debug().Err(err).Msg("session file corrupt, treating as signed out")
		return nil, nil
	}
	if sess.AccessToken == "" {
		s.log.Debug().Msg("session file has no access token, treating as signed out")
		return nil, nil
	}

	return &sess, nil
}

// Persist writes the session with secure permissions. The write goes to a
// temporary file in the same directory followed by a rename, so a concurrent
// Load sees either the old record or the new one, never a partial write.
func (s *Store) Persist(sess *Session) error {
	if sess == nil || sess.AccessToken == "" {
		return fmt.Errorf("cannot persist session without access token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "session-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write session: %w", err)
	}
	// 0600: the token must not be readable by other local users.
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to restrict session file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp session file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	return nil
}

// Remove deletes the session file. Removing an absent session is not an
// error, so sign-out is idempotent.
func (s *Store) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
