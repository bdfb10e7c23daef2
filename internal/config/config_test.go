package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigWithEnvOverride(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://api.example.org"
	cfg.Compose.DefaultFrom = "ops@example.org"

	if _, err := Save(cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	t.Setenv("MAILCONSOLE_API_BASE_URL", "http://env.local:8080/")

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if loaded.API.BaseURL != "http://env.local:8080" {
		t.Fatalf("expected env override without trailing slash, got %q", loaded.API.BaseURL)
	}
	if loaded.Compose.DefaultFrom != "ops@example.org" {
		t.Fatalf("expected default_from from file, got %q", loaded.Compose.DefaultFrom)
	}
	if loaded.API.Timeout != 30*time.Second {
		t.Fatalf("expected default timeout, got %v", loaded.API.Timeout)
	}
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if loaded.Auth.RedirectTo != "auth login" {
		t.Fatalf("unexpected redirect default %q", loaded.Auth.RedirectTo)
	}
	if loaded.Compose.DefaultFrom != "donations@rtnewworld.com" {
		t.Fatalf("unexpected default_from %q", loaded.Compose.DefaultFrom)
	}
}

func TestValidateRejectsBadBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.BaseURL = "ftp://example.org"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected scheme error")
	}

	cfg.API.BaseURL = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected missing url error")
	}

	cfg.API.BaseURL = "https://api.example.org"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDirEnvOverridesHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DirEnv, dir)

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if path != filepath.Join(dir, "config.yaml") {
		t.Fatalf("unexpected config path %q", path)
	}
}

func TestTerminalSessionPathPrefersRuntimeDir(t *testing.T) {
	runtimeDir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	path := TerminalSessionPath(4242)
	if !strings.HasPrefix(path, runtimeDir+string(filepath.Separator)) {
		t.Fatalf("expected path under %s, got %s", runtimeDir, path)
	}
	if filepath.Base(path) != "session-4242" {
		t.Fatalf("unexpected file name %s", filepath.Base(path))
	}
}
