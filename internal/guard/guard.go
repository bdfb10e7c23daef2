// Package guard decides whether a command may run for the current visitor.
//
// Protected commands need a token the server still accepts. Public commands
// (login, register) send an already signed-in operator to the dashboard.
// Every refusal clears local credentials and names the command to run
// instead; there is no retry.
package guard

import (
	"context"
	"errors"
	"sync/atomic"

	"mailconsole/internal/api"
)

const (
	DefaultRedirect = "auth login"
	LandingRedirect = "dashboard"
)

const (
	MsgLoginRequired  = "Please sign up or log in to access this page"
	MsgSessionExpired = "Session expired. Please log in again"
	MsgAuthError      = "Authentication error. Please log in again"
)

// Session is the part of the session context the guard needs.
type Session interface {
	Token() (string, error)
	Clear() error
}

// Verifier resolves the user behind a bearer token.
type Verifier interface {
	WhoAmI(ctx context.Context, token string) (api.User, error)
}

// Notifier shows a transient message to the operator.
type Notifier interface {
	Error(msg string)
}

type Options struct {
	RequireAuth bool
	// RedirectTo defaults to DefaultRedirect.
	RedirectTo string
}

type Decision struct {
	Allowed  bool
	Redirect string
	// User is set when a protected check succeeded.
	User *api.User
}

type Guard struct {
	Session  Session
	Verifier Verifier
	Notifier Notifier

	done atomic.Bool
}

func New(session Session, verifier Verifier, notifier Notifier) *Guard {
	return &Guard{Session: session, Verifier: verifier, Notifier: notifier}
}

// Checking reports whether no allow/deny decision has been reached yet.
func (g *Guard) Checking() bool {
	return !g.done.Load()
}

func (g *Guard) Check(ctx context.Context, opts Options) Decision {
	g.done.Store(false)

	redirect := opts.RedirectTo
	if redirect == "" {
		redirect = DefaultRedirect
	}

	token, err := g.Session.Token()
	if err != nil {
		if opts.RequireAuth {
			return g.deny(MsgAuthError, redirect, true)
		}
		// Sending the operator to the page they are on would loop; start
		// them signed out instead.
		_ = g.Session.Clear()
		token = ""
	}

	if !opts.RequireAuth {
		if token != "" {
			return Decision{Redirect: LandingRedirect}
		}
		return g.allow(nil)
	}

	if token == "" {
		return g.deny(MsgLoginRequired, redirect, false)
	}

	user, err := g.Verifier.WhoAmI(ctx, token)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			return g.deny(MsgSessionExpired, redirect, true)
		}
		return g.deny(MsgAuthError, redirect, true)
	}
	return g.allow(&user)
}

func (g *Guard) allow(user *api.User) Decision {
	g.done.Store(true)
	return Decision{Allowed: true, User: user}
}

func (g *Guard) deny(msg, redirect string, clear bool) Decision {
	if clear {
		// Clearing is idempotent; a failure here leaves nothing to recover.
		_ = g.Session.Clear()
	}
	if g.Notifier != nil {
		g.Notifier.Error(msg)
	}
	g.done.Store(true)
	return Decision{Redirect: redirect}
}
