package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mailconsole/internal/api"
	"mailconsole/internal/config"
	"mailconsole/internal/dashboard"
	"mailconsole/internal/guard"
	"mailconsole/internal/secrets"
	"mailconsole/internal/session"
)

// Access levels, set on a command through the "access" annotation and
// inherited by its subcommands.
const (
	accessKey = "access"

	// accessPublic runs the guard's public check: a signed-in operator is
	// sent to the dashboard instead.
	accessPublic = "public"
	// accessOpen skips the guard but still opens the session and client.
	accessOpen = "open"
	// accessLocal needs neither a session nor a valid API configuration.
	accessLocal = "local"
)

type deps struct {
	loadConfig  func() (config.Config, error)
	openSession func(cfg config.Config) (*session.Session, error)
}

func defaultDeps() deps {
	return deps{
		loadConfig:  config.Load,
		openSession: openSession,
	}
}

func openSession(cfg config.Config) (*session.Session, error) {
	ring, err := secrets.Open(cfg.KeyringBackend)
	if err != nil {
		return nil, fmt.Errorf("open keyring (try keyring_backend: file): %w", err)
	}
	return session.New(
		session.KeyringStore{Ring: ring},
		session.FileStore{Path: config.TerminalSessionPath(os.Getppid())},
	), nil
}

// app carries everything a command needs once the root pre-run completed.
type app struct {
	deps

	cfg     config.Config
	logger  *slog.Logger
	session *session.Session
	client  *api.Client
	user    *api.User

	stdin *bufio.Reader
}

func (a *app) init(cmd *cobra.Command, verbose bool) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg.Log.Level, verbose)

	if accessOf(cmd) == accessLocal {
		return nil
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	sess, err := a.openSession(cfg)
	if err != nil {
		return err
	}
	a.session = sess
	a.client = api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, sess, a.logger)
	return nil
}

type redirectError struct {
	target string
}

func (e *redirectError) Error() string {
	return fmt.Sprintf("run `mailconsole %s`", e.target)
}

func (a *app) authorize(cmd *cobra.Command) error {
	var opts guard.Options
	switch accessOf(cmd) {
	case accessLocal, accessOpen:
		return nil
	case accessPublic:
		opts = guard.Options{RequireAuth: false}
	default:
		opts = guard.Options{RequireAuth: true, RedirectTo: a.cfg.Auth.RedirectTo}
	}

	g := guard.New(a.session, a.client, notifier{w: cmd.ErrOrStderr()})
	decision := g.Check(cmd.Context(), opts)
	if !decision.Allowed {
		a.logger.Debug("guard refused command", "command", cmd.CommandPath(), "redirect", decision.Redirect)
		return &redirectError{target: decision.Redirect}
	}
	a.user = decision.User
	return nil
}

func accessOf(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return accessLocal
		}
		if level, ok := c.Annotations[accessKey]; ok {
			return level
		}
	}
	return ""
}

func withAccess(cmd *cobra.Command, level string) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[accessKey] = level
	return cmd
}

func (a *app) dashboard() *dashboard.Dashboard {
	return dashboard.New(a.client, a.session, dashboard.Options{
		RefetchStats: a.cfg.Dashboard.RefetchStats,
		Logger:       a.logger,
	})
}

// notifier prints guard messages the way a toast would show them.
type notifier struct {
	w io.Writer
}

func (n notifier) Error(msg string) {
	fmt.Fprintln(n.w, msg)
}

func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// readSecret reads one line without echo when stdin is a terminal, and a
// plain line otherwise.
func (a *app) readSecret(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		data, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	if a.stdin == nil {
		a.stdin = bufio.NewReader(cmd.InOrStdin())
	}
	line, err := a.stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%s no input", strings.TrimSpace(prompt))
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
