package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const AppName = "mailconsole"

// DirEnv overrides the config directory, mainly for scripted setups.
const DirEnv = "MAILCONSOLE_CONFIG_DIR"

// Dir is ~/.config/mailconsole unless DirEnv is set.
func Dir() (string, error) {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home dir: %w", err)
	}
	return filepath.Join(home, ".config", AppName), nil
}

func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return ensure(dir, "config dir")
}

// KeyringDir holds the encrypted entries of the keyring "file" backend.
func KeyringDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "keyring"), nil
}

func EnsureKeyringDir() (string, error) {
	dir, err := KeyringDir()
	if err != nil {
		return "", err
	}
	return ensure(dir, "keyring dir")
}

// TerminalSessionPath is the token file of the per-terminal session scope,
// keyed by the parent shell's process id. It lives in the per-user runtime
// dir when the system provides one, else under the OS temp dir.
func TerminalSessionPath(ppid int) string {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, AppName+"-"+strconv.Itoa(os.Getuid()))
	return filepath.Join(dir, "session-"+strconv.Itoa(ppid))
}

func ensure(dir, what string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("ensure %s: %w", what, err)
	}
	return dir, nil
}
