package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// SessionFileName is the default file under the user's config directory.
const SessionFileName = "session.json"

// savedSession is the on-disk form of a Session.
type savedSession struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

// DefaultSessionPath returns $XDG_CONFIG_HOME/equipctl/session.json or the
// platform equivalent.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "equipctl", SessionFileName), nil
}

// SaveSession writes s to path, readable only by the current user.
func SaveSession(path string, s *Session) error {
	if err := s.ready(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(savedSession{
		BaseURL: s.client.BaseURL(),
		Token:   s.Token,
		User:    s.User,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// LoadSession reads a session saved by SaveSession. When baseURL is empty
// the saved server address is used. A missing file returns
// ErrNotAuthenticated.
func LoadSession(path, baseURL string, opts ...Option) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var saved savedSession
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	if saved.Token == "" {
		return nil, ErrNotAuthenticated
	}
	if baseURL == "" {
		baseURL = saved.BaseURL
	}
	return New(baseURL, opts...).Resume(saved.Token, saved.User), nil
}

// RemoveSession deletes the session file. A missing file is not an error.
func RemoveSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
