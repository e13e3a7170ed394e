package dashboard

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Session is the explicit per-login context passed to every controller.
// It is initialized on login and torn down on logout; nothing in the
// dashboard layer keeps ambient global user state.
type Session struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	AccessToken string `json:"access_token"`
	APIBaseURL  string `json:"api_base_url"`
}

// ErrNoSession is returned when no persisted session exists.
var ErrNoSession = errors.New("no active session, log in first")

// SessionStore persists the session across invocations.
type SessionStore interface {
	Load() (*Session, error)
	Save(*Session) error
	Clear() error
}

// FileStore keeps the session as JSON under the user config directory.
type FileStore struct {
	path string
}

// NewFileStore builds a store rooted at the given path. An empty path
// defaults to skillbit/session.json under os.UserConfigDir.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(base, "skillbit", "session.json")
	}
	return &FileStore{path: path}, nil
}

// Load reads the persisted session.
func (s *FileStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	if session.Email == "" || session.AccessToken == "" {
		return nil, ErrNoSession
	}
	return &session, nil
}

// Save writes the session to disk.
func (s *FileStore) Save(session *Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Clear removes the persisted session.
func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
