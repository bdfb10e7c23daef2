// Package dashboard keeps the operator's view of the backend: stats, sent and
// trashed mail, and users. Slices are loaded concurrently and then adjusted
// locally after each confirmed mutation.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"mailconsole/internal/api"
)

var (
	ErrLoadFailed       = errors.New("Failed to load dashboard data") //nolint:staticcheck // shown to the operator verbatim
	ErrPasswordMismatch = errors.New("Passwords do not match")        //nolint:staticcheck // shown to the operator verbatim
	ErrLogoutInFlight   = errors.New("logout already in progress")
)

// Backend is the subset of the API client the dashboard drives.
type Backend interface {
	WhoAmI(ctx context.Context, token string) (api.User, error)
	Stats(ctx context.Context) (api.Stats, error)
	History(ctx context.Context, status api.Status) ([]api.Email, error)
	Users(ctx context.Context) ([]api.User, error)
	Trash(ctx context.Context, id int64) (api.Email, error)
	DeletePermanently(ctx context.Context, id int64) error
	DeleteUser(ctx context.Context, id int64) error
	Register(ctx context.Context, in api.RegisterRequest) (api.User, error)
	Logout(ctx context.Context) error
}

// Session is cleared after a confirmed logout.
type Session interface {
	Clear() error
}

type Options struct {
	// RefetchStats replaces local count adjustments with a stats request
	// after every mutation.
	RefetchStats bool
	Logger       *slog.Logger
}

type Snapshot struct {
	Me    api.User
	Stats api.Stats
	Sent  []api.Email
	Trash []api.Email
	Users []api.User
}

type Dashboard struct {
	backend Backend
	session Session
	opts    Options

	mu    sync.Mutex
	state Snapshot

	loggingOut atomic.Bool
}

func New(backend Backend, session Session, opts Options) *Dashboard {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dashboard{backend: backend, session: session, opts: opts}
}

// Snapshot returns a copy of the current state.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.state
	s.Sent = append([]api.Email(nil), s.Sent...)
	s.Trash = append([]api.Email(nil), s.Trash...)
	s.Users = append([]api.User(nil), s.Users...)
	return s
}

type loadError struct {
	err error
}

func (e *loadError) Error() string        { return ErrLoadFailed.Error() }
func (e *loadError) Unwrap() error        { return e.err }
func (e *loadError) Is(target error) bool { return target == ErrLoadFailed }

// Load fetches every slice concurrently. Each request writes only its own
// slice, so completion order does not matter. Any failure is reported as
// ErrLoadFailed wrapping the cause.
func (d *Dashboard) Load(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		me, err := d.backend.WhoAmI(ctx, "")
		if err != nil {
			return fmt.Errorf("who am i: %w", err)
		}
		d.update(func(s *Snapshot) { s.Me = me })
		return nil
	})
	g.Go(func() error {
		stats, err := d.backend.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		d.update(func(s *Snapshot) { s.Stats = stats })
		return nil
	})
	g.Go(func() error {
		sent, err := d.backend.History(ctx, api.StatusSent)
		if err != nil {
			return fmt.Errorf("sent history: %w", err)
		}
		d.update(func(s *Snapshot) { s.Sent = sent })
		return nil
	})
	g.Go(func() error {
		trash, err := d.backend.History(ctx, api.StatusTrash)
		if err != nil {
			return fmt.Errorf("trash history: %w", err)
		}
		d.update(func(s *Snapshot) { s.Trash = trash })
		return nil
	})
	g.Go(func() error {
		users, err := d.backend.Users(ctx)
		if err != nil {
			return fmt.Errorf("users: %w", err)
		}
		d.update(func(s *Snapshot) { s.Users = users })
		return nil
	})

	if err := g.Wait(); err != nil {
		d.opts.Logger.Debug("dashboard load failed", "err", err)
		return &loadError{err: err}
	}
	return nil
}

// LoadStats fetches only the counters, for callers that mutate without
// showing the lists.
func (d *Dashboard) LoadStats(ctx context.Context) error {
	stats, err := d.backend.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	d.update(func(s *Snapshot) { s.Stats = stats })
	return nil
}

// RecordSent adds a freshly created email to the sent list.
func (d *Dashboard) RecordSent(ctx context.Context, email api.Email) {
	d.update(func(s *Snapshot) {
		s.Sent = prepend(s.Sent, email)
	})
	d.adjustStats(ctx, func(st *api.Stats) { st.Sent++ })
}

func (d *Dashboard) MoveToTrash(ctx context.Context, id int64) (api.Email, error) {
	moved, err := d.backend.Trash(ctx, id)
	if err != nil {
		return api.Email{}, err
	}
	if moved.ID == 0 {
		moved.ID = id
	}
	if moved.Status == "" {
		moved.Status = api.StatusTrash
	}

	d.update(func(s *Snapshot) {
		s.Sent = removeEmail(s.Sent, id)
		s.Trash = prepend(s.Trash, moved)
	})
	d.adjustStats(ctx, func(st *api.Stats) {
		st.Sent--
		st.Trash++
	})
	return moved, nil
}

func (d *Dashboard) DeletePermanently(ctx context.Context, id int64) error {
	if err := d.backend.DeletePermanently(ctx, id); err != nil {
		return err
	}
	d.update(func(s *Snapshot) {
		s.Trash = removeEmail(s.Trash, id)
	})
	d.adjustStats(ctx, func(st *api.Stats) { st.Trash-- })
	return nil
}

func (d *Dashboard) DeleteUser(ctx context.Context, id int64) error {
	if err := d.backend.DeleteUser(ctx, id); err != nil {
		return err
	}
	d.update(func(s *Snapshot) {
		out := make([]api.User, 0, len(s.Users))
		for _, u := range s.Users {
			if u.ID != id {
				out = append(out, u)
			}
		}
		s.Users = out
	})
	d.adjustStats(ctx, func(st *api.Stats) { st.Users-- })
	return nil
}

// AddUser registers a new operator after checking the confirmation, then
// refreshes the user list. A failed refresh is returned with the created
// user.
func (d *Dashboard) AddUser(ctx context.Context, in api.RegisterRequest, confirm string) (api.User, error) {
	if in.Password != confirm {
		return api.User{}, ErrPasswordMismatch
	}

	created, err := d.backend.Register(ctx, in)
	if err != nil {
		return api.User{}, err
	}
	d.adjustStats(ctx, func(st *api.Stats) { st.Users++ })

	users, err := d.backend.Users(ctx)
	if err != nil {
		return created, fmt.Errorf("refresh users: %w", err)
	}
	d.update(func(s *Snapshot) { s.Users = users })
	return created, nil
}

// Logout ends the server session. The local session is cleared only after the
// server confirms, and only one logout runs at a time.
func (d *Dashboard) Logout(ctx context.Context) error {
	if !d.loggingOut.CompareAndSwap(false, true) {
		return ErrLogoutInFlight
	}
	defer d.loggingOut.Store(false)

	if err := d.backend.Logout(ctx); err != nil {
		return err
	}
	if d.session != nil {
		if err := d.session.Clear(); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
	}

	d.mu.Lock()
	d.state = Snapshot{}
	d.mu.Unlock()
	return nil
}

// LoggingOut reports whether a logout is in flight.
func (d *Dashboard) LoggingOut() bool {
	return d.loggingOut.Load()
}

func (d *Dashboard) update(fn func(*Snapshot)) {
	d.mu.Lock()
	fn(&d.state)
	d.mu.Unlock()
}

func (d *Dashboard) adjustStats(ctx context.Context, local func(*api.Stats)) {
	if d.opts.RefetchStats {
		stats, err := d.backend.Stats(ctx)
		if err == nil {
			d.update(func(s *Snapshot) { s.Stats = stats })
			return
		}
		d.opts.Logger.Warn("stats refetch failed, adjusting locally", "err", err)
	}
	d.update(func(s *Snapshot) { local(&s.Stats) })
}

func prepend(list []api.Email, email api.Email) []api.Email {
	out := make([]api.Email, 0, len(list)+1)
	out = append(out, email)
	return append(out, list...)
}

func removeEmail(list []api.Email, id int64) []api.Email {
	out := make([]api.Email, 0, len(list))
	for _, e := range list {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}
