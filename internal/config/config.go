package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API            APIConfig       `mapstructure:"api" yaml:"api"`
	Auth           AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Compose        ComposeConfig   `mapstructure:"compose" yaml:"compose"`
	Dashboard      DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
	Log            LogConfig       `mapstructure:"log" yaml:"log"`
	KeyringBackend string          `mapstructure:"keyring_backend" yaml:"keyring_backend,omitempty"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type AuthConfig struct {
	// RedirectTo is the command suggested when a protected command is refused.
	RedirectTo string `mapstructure:"redirect_to" yaml:"redirect_to"`
}

type ComposeConfig struct {
	DefaultFrom string `mapstructure:"default_from" yaml:"default_from"`
}

type DashboardConfig struct {
	RefetchStats bool `mapstructure:"refetch_stats" yaml:"refetch_stats"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			RedirectTo: "auth login",
		},
		Compose: ComposeConfig{
			DefaultFrom: "donations@rtnewworld.com",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MAILCONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	return cfg, nil
}

func Save(cfg Config) (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := EnsureDir(); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}

	return path, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("auth.redirect_to", cfg.Auth.RedirectTo)
	v.SetDefault("compose.default_from", cfg.Compose.DefaultFrom)
	v.SetDefault("dashboard.refetch_stats", cfg.Dashboard.RefetchStats)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("keyring_backend", cfg.KeyringBackend)
}

func Validate(cfg Config) error {
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must be an http or https URL, got %q", cfg.API.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("api.base_url has no host: %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	return nil
}
