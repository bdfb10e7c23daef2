package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mailconsole/internal/api"
	"mailconsole/internal/apitest"
	"mailconsole/internal/session"
)

func newFixture(t *testing.T, opts Options) (*apitest.Server, *session.Session, *Dashboard) {
	t.Helper()
	srv := apitest.New(t)
	sess := session.New(&session.MemoryStore{}, &session.MemoryStore{})
	if err := sess.Set(apitest.ValidToken, false); err != nil {
		t.Fatalf("set token: %v", err)
	}
	client := api.NewClient(srv.URL, 5*time.Second, sess, nil)
	return srv, sess, New(client, sess, opts)
}

func TestLoadPopulatesEverySlice(t *testing.T) {
	srv, _, d := newFixture(t, Options{})
	srv.AddEmail(api.Email{Subject: "one"})
	srv.AddEmail(api.Email{Subject: "two"})
	srv.AddEmail(api.Email{Subject: "gone", Status: api.StatusTrash})
	srv.BareLists()

	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	s := d.Snapshot()
	if s.Me.Username != apitest.Username {
		t.Fatalf("unexpected user %+v", s.Me)
	}
	if s.Stats != (api.Stats{Sent: 2, Users: 1, Trash: 1}) {
		t.Fatalf("unexpected stats %+v", s.Stats)
	}
	if len(s.Sent) != 2 || s.Sent[0].Subject != "two" {
		t.Fatalf("unexpected sent list %+v", s.Sent)
	}
	if len(s.Trash) != 1 || len(s.Users) != 1 {
		t.Fatalf("unexpected trash/users %d/%d", len(s.Trash), len(s.Users))
	}
}

func TestLoadFailureIsGeneric(t *testing.T) {
	_, sess, d := newFixture(t, Options{})
	if err := sess.Set("expired", true); err != nil {
		t.Fatalf("set token: %v", err)
	}

	err := d.Load(context.Background())
	if !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
	if err.Error() != "Failed to load dashboard data" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected the cause to stay inspectable, got %v", err)
	}
}

func TestRecordSentPrependsAndCounts(t *testing.T) {
	srv, _, d := newFixture(t, Options{})
	srv.AddEmail(api.Email{Subject: "old"})
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	d.RecordSent(context.Background(), api.Email{ID: 500, Subject: "new"})

	s := d.Snapshot()
	if s.Stats.Sent != 2 {
		t.Fatalf("expected sent=2, got %d", s.Stats.Sent)
	}
	if s.Sent[0].ID != 500 || s.Sent[1].Subject != "old" {
		t.Fatalf("unexpected sent order %+v", s.Sent)
	}
}

func TestLoadStatsThenRecordSent(t *testing.T) {
	srv, _, d := newFixture(t, Options{})
	srv.AddEmail(api.Email{Subject: "old"})
	srv.AddEmail(api.Email{Subject: "older", Status: api.StatusTrash})

	if err := d.LoadStats(context.Background()); err != nil {
		t.Fatalf("load stats: %v", err)
	}
	if n := srv.Calls("GET /api/email/history"); n != 0 {
		t.Fatalf("expected lists untouched, got %d history calls", n)
	}

	d.RecordSent(context.Background(), api.Email{ID: 9})
	s := d.Snapshot()
	if s.Stats.Sent != 2 || s.Stats.Trash != 1 {
		t.Fatalf("unexpected stats %+v", s.Stats)
	}
	if len(s.Sent) != 1 || s.Sent[0].ID != 9 {
		t.Fatalf("unexpected sent list %+v", s.Sent)
	}
}

func TestMoveToTrash(t *testing.T) {
	srv, _, d := newFixture(t, Options{})
	e := srv.AddEmail(api.Email{Subject: "bye"})
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	moved, err := d.MoveToTrash(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("move to trash: %v", err)
	}
	if moved.Status != api.StatusTrash {
		t.Fatalf("unexpected status %q", moved.Status)
	}

	s := d.Snapshot()
	if len(s.Sent) != 0 || len(s.Trash) != 1 || s.Trash[0].ID != e.ID {
		t.Fatalf("unexpected lists sent=%+v trash=%+v", s.Sent, s.Trash)
	}
	if s.Stats.Sent != 0 || s.Stats.Trash != 1 {
		t.Fatalf("unexpected stats %+v", s.Stats)
	}
}

func TestMoveToTrashFailureKeepsState(t *testing.T) {
	srv, _, d := newFixture(t, Options{})
	srv.AddEmail(api.Email{Subject: "stay"})
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := d.Snapshot()

	if _, err := d.MoveToTrash(context.Background(), 9999); err == nil {
		t.Fatalf("expected an error for an unknown id")
	}
	after := d.Snapshot()
	if after.Stats != before.Stats || len(after.Sent) != len(before.Sent) {
		t.Fatalf("state changed after failure: %+v", after)
	}
}

func TestDeletePermanently(t *testing.T) {
	srv, _, d := newFixture(t, Options{})
	e := srv.AddEmail(api.Email{Subject: "old", Status: api.StatusTrash})
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := d.DeletePermanently(context.Background(), e.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	s := d.Snapshot()
	if len(s.Trash) != 0 || s.Stats.Trash != 0 {
		t.Fatalf("unexpected trash state %+v / %+v", s.Trash, s.Stats)
	}

	err := d.DeletePermanently(context.Background(), e.ID)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Message != "Email not found in trash" {
		t.Fatalf("expected server message, got %v", err)
	}
	if got := d.Snapshot().Stats.Trash; got != 0 {
		t.Fatalf("failed purge changed trash count to %d", got)
	}
}

func TestDeleteUser(t *testing.T) {
	_, _, d := newFixture(t, Options{})
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := d.DeleteUser(context.Background(), 1); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	s := d.Snapshot()
	if len(s.Users) != 0 || s.Stats.Users != 0 {
		t.Fatalf("unexpected users state %+v / %+v", s.Users, s.Stats)
	}
}

func TestAddUserPasswordMismatchMakesNoRequest(t *testing.T) {
	srv, _, d := newFixture(t, Options{})

	_, err := d.AddUser(context.Background(), api.RegisterRequest{Username: "bob", Password: "a"}, "b")
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if n := srv.Calls("POST /api/auth/register"); n != 0 {
		t.Fatalf("expected no register call, got %d", n)
	}
}

func TestAddUserRefreshesList(t *testing.T) {
	srv, _, d := newFixture(t, Options{})
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	created, err := d.AddUser(context.Background(), api.RegisterRequest{Username: "bob", Name: "Bob", Password: "pw"}, "pw")
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	if created.Username != "bob" {
		t.Fatalf("unexpected created user %+v", created)
	}

	s := d.Snapshot()
	if len(s.Users) != 2 || s.Stats.Users != 2 {
		t.Fatalf("unexpected users state %+v / %+v", s.Users, s.Stats)
	}
	if n := srv.Calls("GET /api/users"); n != 2 {
		t.Fatalf("expected load plus refresh, got %d user fetches", n)
	}
}

func TestRefetchStatsUsesServerCounts(t *testing.T) {
	srv, _, d := newFixture(t, Options{RefetchStats: true})
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	srv.SkewStats(api.Stats{Sent: 10})

	d.RecordSent(context.Background(), api.Email{ID: 1})

	if got := d.Snapshot().Stats.Sent; got != 10 {
		t.Fatalf("expected the server's count, got %d", got)
	}
}

func TestLogoutClearsSessionOnSuccess(t *testing.T) {
	_, sess, d := newFixture(t, Options{})
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := d.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if token, _ := sess.Token(); token != "" {
		t.Fatalf("expected cleared session, got %q", token)
	}
	if s := d.Snapshot(); len(s.Users) != 0 || s.Me.ID != 0 {
		t.Fatalf("expected reset state, got %+v", s)
	}
}

type failingLogout struct {
	Backend
}

func (failingLogout) Logout(context.Context) error {
	return &api.Error{Status: 500, Message: "Logout failed"}
}

func TestLogoutFailureKeepsSession(t *testing.T) {
	srv, sess, _ := newFixture(t, Options{})
	client := api.NewClient(srv.URL, time.Second, sess, nil)
	d := New(failingLogout{client}, sess, Options{})

	if err := d.Logout(context.Background()); err == nil {
		t.Fatalf("expected logout error")
	}
	if token, _ := sess.Token(); token != apitest.ValidToken {
		t.Fatalf("session cleared despite failure: %q", token)
	}
}

type blockingLogout struct {
	Backend
	entered chan struct{}
	release chan struct{}
}

func (b blockingLogout) Logout(context.Context) error {
	close(b.entered)
	<-b.release
	return nil
}

func TestOnlyOneLogoutInFlight(t *testing.T) {
	srv, sess, _ := newFixture(t, Options{})
	backend := blockingLogout{
		Backend: api.NewClient(srv.URL, time.Second, sess, nil),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	d := New(backend, sess, Options{})

	var wg sync.WaitGroup
	wg.Add(1)
	var first error
	go func() {
		defer wg.Done()
		first = d.Logout(context.Background())
	}()

	<-backend.entered
	if !d.LoggingOut() {
		t.Fatalf("expected logout to be in flight")
	}
	if err := d.Logout(context.Background()); !errors.Is(err, ErrLogoutInFlight) {
		t.Fatalf("expected ErrLogoutInFlight, got %v", err)
	}
	close(backend.release)
	wg.Wait()

	if first != nil {
		t.Fatalf("first logout: %v", first)
	}
	if d.LoggingOut() {
		t.Fatalf("busy flag not released")
	}
}
