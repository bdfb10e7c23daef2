package secrets

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/term"

	"mailconsole/internal/config"
)

const (
	PasswordEnv = "MAILCONSOLE_KEYRING_PASSWORD" //nolint:gosec // env var name, not a credential
	BackendEnv  = "MAILCONSOLE_KEYRING_BACKEND"
)

var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrOpenTimeout    = errors.New("keyring connection timed out")

	errMissingSecretKey = errors.New("missing secret key")
	errNoTTY            = errors.New("no TTY for the keyring file password prompt")
	errUnknownBackend   = errors.New("unknown keyring backend")

	openKeyring = keyring.Open
)

// Source records where a backend choice came from, for error messages.
type Source string

const (
	SourceEnv     Source = "env"
	SourceConfig  Source = "config"
	SourceDefault Source = "default"
)

const backendAuto = "auto"

var backendTypes = map[string]keyring.BackendType{
	"keychain":       keyring.KeychainBackend,
	"secret-service": keyring.SecretServiceBackend,
	"file":           keyring.FileBackend,
}

// D-Bus SecretService can hang forever when gnome-keyring is installed but
// not running.
const openTimeout = 5 * time.Second

// Backend resolves the configured backend name. The environment wins over
// config.
func Backend(configured string) (string, Source) {
	if v := normalize(os.Getenv(BackendEnv)); v != "" {
		return v, SourceEnv
	}
	if v := normalize(configured); v != "" {
		return v, SourceConfig
	}
	return backendAuto, SourceDefault
}

// openPlan is what Open will ask keyring for on a given host.
type openPlan struct {
	backends []keyring.BackendType
	timeout  time.Duration
}

func planFor(goos, backend, dbusAddr string) (openPlan, error) {
	if backend == backendAuto {
		if goos != "linux" {
			return openPlan{}, nil
		}
		if dbusAddr == "" {
			// Headless: no secret service to talk to.
			return openPlan{backends: []keyring.BackendType{keyring.FileBackend}}, nil
		}
		return openPlan{timeout: openTimeout}, nil
	}
	bt, ok := backendTypes[backend]
	if !ok {
		return openPlan{}, fmt.Errorf("%w %q (use auto, keychain, secret-service or file)", errUnknownBackend, backend)
	}
	return openPlan{backends: []keyring.BackendType{bt}}, nil
}

// filePrompt supplies the passphrase of the encrypted file backend. An empty
// but set env value is a valid passphrase.
func filePrompt(lookup func(string) (string, bool), tty bool) keyring.PromptFunc {
	if pw, ok := lookup(PasswordEnv); ok {
		return keyring.FixedStringPrompt(pw)
	}
	if tty {
		return keyring.TerminalPrompt
	}
	return func(string) (string, error) {
		return "", fmt.Errorf("%w; set %s", errNoTTY, PasswordEnv)
	}
}

// Ring is an opened keyring scoped to this application.
type Ring struct {
	kr keyring.Keyring
}

// NewRing wraps an already opened keyring. Tests pass keyring.NewArrayKeyring.
func NewRing(kr keyring.Keyring) *Ring {
	return &Ring{kr: kr}
}

// Open opens the OS keyring, falling back to an encrypted file store under
// the config dir when no secret service is reachable.
func Open(configured string) (*Ring, error) {
	dir, err := config.EnsureKeyringDir()
	if err != nil {
		return nil, err
	}
	backend, source := Backend(configured)
	plan, err := planFor(runtime.GOOS, backend, os.Getenv("DBUS_SESSION_BUS_ADDRESS"))
	if err != nil {
		return nil, fmt.Errorf("%s keyring backend: %w", source, err)
	}

	cfg := keyring.Config{
		ServiceName:      config.AppName,
		AllowedBackends:  plan.backends,
		FileDir:          dir,
		FilePasswordFunc: filePrompt(os.LookupEnv, term.IsTerminal(int(os.Stdin.Fd()))),
	}
	if plan.timeout == 0 {
		kr, err := openKeyring(cfg)
		if err != nil {
			return nil, fmt.Errorf("open keyring: %w", err)
		}
		return NewRing(kr), nil
	}
	return openBounded(cfg, plan.timeout)
}

func openBounded(cfg keyring.Config, timeout time.Duration) (*Ring, error) {
	type opened struct {
		kr  keyring.Keyring
		err error
	}
	done := make(chan opened, 1)
	go func() {
		kr, err := openKeyring(cfg)
		done <- opened{kr, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("open keyring: %w", res.err)
		}
		return NewRing(res.kr), nil
	case <-timer.C:
		return nil, fmt.Errorf("%w after %v; set %s=file and %s to use the encrypted file store",
			ErrOpenTimeout, timeout, BackendEnv, PasswordEnv)
	}
}

func (r *Ring) Set(key string, value []byte) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := r.kr.Set(keyring.Item{Key: key, Data: value, Label: config.AppName}); err != nil {
		return fmt.Errorf("store secret %s: %w", key, err)
	}
	return nil
}

func (r *Ring) Get(key string) ([]byte, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	item, err := r.kr.Get(key)
	switch {
	case errors.Is(err, keyring.ErrKeyNotFound):
		return nil, ErrSecretNotFound
	case err != nil:
		return nil, fmt.Errorf("read secret %s: %w", key, err)
	}
	return item.Data, nil
}

// Remove deletes key. A missing key is not an error.
func (r *Ring) Remove(key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = r.kr.Remove(key)
	if err == nil || errors.Is(err, keyring.ErrKeyNotFound) || os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("remove secret %s: %w", key, err)
}

func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errMissingSecretKey
	}
	return key, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
