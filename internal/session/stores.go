package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mailconsole/internal/secrets"
)

const tokenKey = "auth:token"

// KeyringStore keeps the token in the OS keyring.
type KeyringStore struct {
	Ring *secrets.Ring
}

func (k KeyringStore) Get() (string, error) {
	data, err := k.Ring.Get(tokenKey)
	if err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return "", ErrNoToken
		}
		return "", err
	}
	return string(data), nil
}

func (k KeyringStore) Set(token string) error {
	return k.Ring.Set(tokenKey, []byte(token))
}

func (k KeyringStore) Clear() error {
	return k.Ring.Remove(tokenKey)
}

// ErrUnsafePath is returned when the session file or its directory could be
// redirected or read by another local user.
var ErrUnsafePath = errors.New("unsafe session path")

// FileStore keeps the token in a single 0600 file. Its directory must be a
// real directory owned by the current user and closed to everyone else.
type FileStore struct {
	Path string
}

func (f FileStore) Get() (string, error) {
	info, err := os.Lstat(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("read session file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrUnsafePath, f.Path)
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read session file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Set writes through a fresh temp file and renames it into place, so a link
// planted at Path is replaced rather than followed.
func (f FileStore) Set(token string) error {
	dir := filepath.Dir(f.Path)
	if err := ensurePrivateDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func (f FileStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func ensurePrivateDir(dir string) error {
	info, err := os.Lstat(dir)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("ensure session dir: %w", err)
		}
		info, err = os.Lstat(dir)
	}
	if err != nil {
		return fmt.Errorf("inspect session dir: %w", err)
	}
	if !info.IsDir() || !private(info) {
		return fmt.Errorf("%w: %s must be a directory owned by you with mode 0700", ErrUnsafePath, dir)
	}
	return nil
}

// MemoryStore is an in-process scope.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

func (m *MemoryStore) Get() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

func (m *MemoryStore) Set(token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}
