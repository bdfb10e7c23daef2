// Package session holds the operator's bearer token in one of two scopes:
// a persistent scope that survives across terminals and a terminal scope
// that lives as long as the shell that created it.
package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoToken is returned by Store.Get when the scope holds no token.
var ErrNoToken = errors.New("no session token")

// Store is one storage scope for the token.
type Store interface {
	Get() (string, error)
	Set(token string) error
	Clear() error
}

// Session is the explicit session context passed to every component that
// needs the token.
type Session struct {
	persistent Store
	terminal   Store
}

func New(persistent, terminal Store) *Session {
	return &Session{persistent: persistent, terminal: terminal}
}

// Token returns the persistent token, falling back to the terminal scope.
// It returns "" when neither scope holds a token.
func (s *Session) Token() (string, error) {
	for _, store := range []Store{s.persistent, s.terminal} {
		token, err := store.Get()
		if err != nil {
			if errors.Is(err, ErrNoToken) {
				continue
			}
			return "", err
		}
		if token = strings.TrimSpace(token); token != "" {
			return token, nil
		}
	}
	return "", nil
}

// Set stores token in exactly one scope and clears the other one.
func (s *Session) Set(token string, persistent bool) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty session token")
	}

	target, other := s.terminal, s.persistent
	if persistent {
		target, other = s.persistent, s.terminal
	}
	if err := other.Clear(); err != nil {
		return fmt.Errorf("clear previous session: %w", err)
	}
	if err := target.Set(token); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Clear removes the token from both scopes. Clearing an empty scope is a
// no-op.
func (s *Session) Clear() error {
	return errors.Join(s.persistent.Clear(), s.terminal.Clear())
}

// Scope reports which scope currently holds the token: "persistent",
// "terminal" or "".
func (s *Session) Scope() string {
	if token, err := s.persistent.Get(); err == nil && strings.TrimSpace(token) != "" {
		return "persistent"
	}
	if token, err := s.terminal.Get(); err == nil && strings.TrimSpace(token) != "" {
		return "terminal"
	}
	return ""
}
