package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mailconsole/internal/api"
	"mailconsole/internal/apitest"
	"mailconsole/internal/compose"
	"mailconsole/internal/config"
	"mailconsole/internal/dashboard"
	"mailconsole/internal/session"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func newSession() *session.Session {
	return session.New(&session.MemoryStore{}, &session.MemoryStore{})
}

func signedIn(t *testing.T) *session.Session {
	t.Helper()
	sess := newSession()
	if err := sess.Set(apitest.ValidToken, false); err != nil {
		t.Fatalf("set token: %v", err)
	}
	return sess
}

func run(t *testing.T, srv *apitest.Server, sess *session.Session, stdin string, args ...string) result {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.API.Timeout = 5 * time.Second
	if srv != nil {
		cfg.API.BaseURL = srv.URL
	}

	cmd := newRootCmd(deps{
		loadConfig: func() (config.Config, error) { return cfg, nil },
		openSession: func(config.Config) (*session.Session, error) {
			if sess == nil {
				t.Fatalf("command unexpectedly opened a session")
			}
			return sess, nil
		},
	})

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func TestProtectedCommandWithoutTokenRedirects(t *testing.T) {
	srv := apitest.New(t)

	res := run(t, srv, newSession(), "", "dashboard")
	if res.err == nil || res.err.Error() != "run `mailconsole auth login`" {
		t.Fatalf("expected redirect to login, got %v", res.err)
	}
	if !strings.Contains(res.stderr, "Please sign up or log in to access this page") {
		t.Fatalf("missing notification, stderr=%q", res.stderr)
	}
	if n := srv.Calls("GET /api/auth/me"); n != 0 {
		t.Fatalf("expected no who-am-i call, got %d", n)
	}
}

func TestExpiredTokenIsCleared(t *testing.T) {
	srv := apitest.New(t)
	sess := newSession()
	if err := sess.Set("stale", true); err != nil {
		t.Fatalf("set token: %v", err)
	}

	res := run(t, srv, sess, "", "email", "list")
	if res.err == nil {
		t.Fatalf("expected redirect")
	}
	if !strings.Contains(res.stderr, "Session expired. Please log in again") {
		t.Fatalf("missing notification, stderr=%q", res.stderr)
	}
	if token, _ := sess.Token(); token != "" {
		t.Fatalf("expected cleared session, got %q", token)
	}
}

func TestLoginStoresTokenInChosenScope(t *testing.T) {
	srv := apitest.New(t)

	sess := newSession()
	res := run(t, srv, sess, apitest.Password+"\n", "auth", "login", "-u", apitest.Username)
	if res.err != nil {
		t.Fatalf("login: %v", res.err)
	}
	if sess.Scope() != "terminal" {
		t.Fatalf("expected terminal scope, got %q", sess.Scope())
	}

	sess = newSession()
	res = run(t, srv, sess, apitest.Password+"\n", "auth", "login", "-u", apitest.Username, "--remember")
	if res.err != nil {
		t.Fatalf("login --remember: %v", res.err)
	}
	if sess.Scope() != "persistent" {
		t.Fatalf("expected persistent scope, got %q", sess.Scope())
	}
}

func TestLoginWhileSignedInGoesToDashboard(t *testing.T) {
	srv := apitest.New(t)

	res := run(t, srv, signedIn(t), "", "auth", "login", "-u", apitest.Username, "--password", apitest.Password)
	if res.err == nil || res.err.Error() != "run `mailconsole dashboard`" {
		t.Fatalf("expected redirect to dashboard, got %v", res.err)
	}
	if n := srv.Calls("POST /api/auth/login"); n != 0 {
		t.Fatalf("expected no login call, got %d", n)
	}
}

func TestLoginWithWrongPassword(t *testing.T) {
	srv := apitest.New(t)
	sess := newSession()

	res := run(t, srv, sess, "nope\n", "auth", "login", "-u", apitest.Username)
	if res.err == nil || res.err.Error() != "Invalid credentials" {
		t.Fatalf("expected server message, got %v", res.err)
	}
	if token, _ := sess.Token(); token != "" {
		t.Fatalf("token stored after failed login: %q", token)
	}
}

func TestDashboardPrintsSlices(t *testing.T) {
	srv := apitest.New(t)
	srv.AddEmail(api.Email{Subject: "Spring appeal", To: api.Recipients{"a@x.org"}})

	res := run(t, srv, signedIn(t), "", "dashboard")
	if res.err != nil {
		t.Fatalf("dashboard: %v", res.err)
	}
	for _, want := range []string{"Signed in as admin", "Spring appeal", "Users (1)"} {
		if !strings.Contains(res.stdout, want) {
			t.Fatalf("output missing %q:\n%s", want, res.stdout)
		}
	}
}

func TestEmailSendFiltersAndSubmits(t *testing.T) {
	srv := apitest.New(t)

	res := run(t, srv, signedIn(t), "",
		"email", "send",
		"--to", "a@x.org,b@x.org",
		"--bcc", "h@x.org",
		"--subject", "Spring appeal",
		"--body", "Dear friend",
		"--cta", "Donate|https://example.org/give",
		"--sender-name", "Joe",
	)
	if res.err != nil {
		t.Fatalf("send: %v", res.err)
	}

	sent := srv.LastSend()
	if sent == nil {
		t.Fatalf("no send request recorded")
	}
	if sent.From != "donations@rtnewworld.com" {
		t.Fatalf("unexpected default from %q", sent.From)
	}
	if strings.Join(sent.To, ",") != "a@x.org,b@x.org" || strings.Join(sent.Bcc, ",") != "h@x.org" {
		t.Fatalf("unexpected recipients to=%v bcc=%v", sent.To, sent.Bcc)
	}
	if len(sent.CTAs) != 1 || sent.CTAs[0].Link != "https://example.org/give" {
		t.Fatalf("unexpected ctas %+v", sent.CTAs)
	}
	if !strings.Contains(res.stdout, "Email sent") {
		t.Fatalf("unexpected output %q", res.stdout)
	}
}

func TestEmailSendReportsSentTotal(t *testing.T) {
	srv := apitest.New(t)
	srv.AddEmail(api.Email{Subject: "earlier", To: api.Recipients{"old@x.org"}})

	res := run(t, srv, signedIn(t), "",
		"email", "send", "--to", "a@x.org", "--subject", "S", "--body", "B", "--cta", "Go|https://x.org")
	if res.err != nil {
		t.Fatalf("send: %v", res.err)
	}
	if !strings.Contains(res.stdout, "Sent total: 2.") {
		t.Fatalf("expected updated sent total, got %q", res.stdout)
	}
	if n := srv.Calls("GET /api/stats"); n != 1 {
		t.Fatalf("expected one stats call, got %d", n)
	}
}

func TestEmailSendIncompleteMakesNoRequest(t *testing.T) {
	srv := apitest.New(t)

	res := run(t, srv, signedIn(t), "", "email", "send", "--to", "a@x.org", "--subject", "S", "--body", "B")
	if !errors.Is(res.err, compose.ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", res.err)
	}
	if n := srv.Calls("POST /api/email/send"); n != 0 {
		t.Fatalf("expected no send call, got %d", n)
	}
	if n := srv.Calls("GET /api/stats"); n != 0 {
		t.Fatalf("expected no stats call for an incomplete draft, got %d", n)
	}
}

func TestEmailSendImportsRecipientFile(t *testing.T) {
	srv := apitest.New(t)
	path := filepath.Join(t.TempDir(), "list.txt")
	if err := os.WriteFile(path, []byte("a@x.org\nnot-an-address\n b@x.org \n"), 0o600); err != nil {
		t.Fatalf("write list: %v", err)
	}

	res := run(t, srv, signedIn(t), "",
		"email", "send",
		"--to-file", path,
		"--subject", "S", "--body", "B", "--cta", "Go|https://x.org",
	)
	if res.err != nil {
		t.Fatalf("send: %v", res.err)
	}
	if !strings.Contains(res.stderr, "Imported 2 emails to TO") {
		t.Fatalf("missing import summary, stderr=%q", res.stderr)
	}
	if got := strings.Join(srv.LastSend().To, ","); got != "a@x.org,b@x.org" {
		t.Fatalf("unexpected recipients %q", got)
	}
}

func TestEmailSendSurfacesServerError(t *testing.T) {
	srv := apitest.New(t)
	srv.FailSend("SMTP not configured")

	res := run(t, srv, signedIn(t), "",
		"email", "send", "--to", "a@x.org", "--subject", "S", "--body", "B", "--cta", "Go|https://x.org")
	if res.err == nil || res.err.Error() != "SMTP not configured" {
		t.Fatalf("expected server message, got %v", res.err)
	}
}

func TestTrashAndPurge(t *testing.T) {
	srv := apitest.New(t)
	e := srv.AddEmail(api.Email{Subject: "bye"})
	sess := signedIn(t)
	id := strconv.FormatInt(e.ID, 10)

	if res := run(t, srv, sess, "", "email", "trash", id); res.err != nil {
		t.Fatalf("trash: %v", res.err)
	}
	res := run(t, srv, sess, "", "email", "list", "--trash")
	if res.err != nil || !strings.Contains(res.stdout, "bye") {
		t.Fatalf("expected trashed email in list, err=%v out=%q", res.err, res.stdout)
	}
	if res := run(t, srv, sess, "", "email", "purge", id); res.err != nil {
		t.Fatalf("purge: %v", res.err)
	}
	res = run(t, srv, sess, "", "email", "purge", id)
	if res.err == nil || res.err.Error() != "Email not found in trash" {
		t.Fatalf("expected message field, got %v", res.err)
	}
}

func TestUsersAddPasswordMismatch(t *testing.T) {
	srv := apitest.New(t)

	res := run(t, srv, signedIn(t), "one\ntwo\n", "users", "add", "-u", "bob", "--name", "Bob")
	if !errors.Is(res.err, dashboard.ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", res.err)
	}
	if n := srv.Calls("POST /api/auth/register"); n != 0 {
		t.Fatalf("expected no register call, got %d", n)
	}
}

func TestUsersAddAndDelete(t *testing.T) {
	srv := apitest.New(t)
	sess := signedIn(t)

	res := run(t, srv, sess, "pw\npw\n", "users", "add", "-u", "bob", "--name", "Bob")
	if res.err != nil {
		t.Fatalf("users add: %v", res.err)
	}
	if !strings.Contains(res.stdout, "bob") {
		t.Fatalf("expected refreshed list with bob:\n%s", res.stdout)
	}

	if res := run(t, srv, sess, "", "users", "delete", "1"); res.err != nil {
		t.Fatalf("users delete: %v", res.err)
	}
}

func TestSMTPShowMasksPassword(t *testing.T) {
	srv := apitest.New(t)

	res := run(t, srv, signedIn(t), "", "smtp", "show")
	if res.err != nil {
		t.Fatalf("smtp show: %v", res.err)
	}
	if strings.Contains(res.stdout, "stored") || !strings.Contains(res.stdout, passwordMask) {
		t.Fatalf("password not masked:\n%s", res.stdout)
	}
}

func TestSMTPSetKeepsPasswordWhenMasked(t *testing.T) {
	srv := apitest.New(t)

	res := run(t, srv, signedIn(t), "", "smtp", "set", "--user", "new@example.org", "--password", passwordMask)
	if res.err != nil {
		t.Fatalf("smtp set: %v", res.err)
	}
	body := srv.LastCredentialsUpdate()
	if _, ok := body["emailPass"]; ok {
		t.Fatalf("masked password was sent: %v", body)
	}
	if body["emailUser"] != "new@example.org" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestSMTPUpdate(t *testing.T) {
	if u := smtpUpdate("u", ""); u.EmailPass != nil {
		t.Fatalf("blank password must be omitted")
	}
	if u := smtpUpdate("u", passwordMask); u.EmailPass != nil {
		t.Fatalf("mask must be omitted")
	}
	if u := smtpUpdate("u", "new"); u.EmailPass == nil || *u.EmailPass != "new" {
		t.Fatalf("new password must be sent")
	}
}

func TestComposePreviewNeedsNoSession(t *testing.T) {
	res := run(t, nil, nil, "",
		"compose", "preview",
		"--to", "a@x.org", "--bcc", "hidden@x.org",
		"--subject", "Hello", "--body", "Body", "--cta", "Go|https://x.org")
	if res.err != nil {
		t.Fatalf("preview: %v", res.err)
	}
	if !strings.Contains(res.stdout, "Subject: Hello") {
		t.Fatalf("missing subject header:\n%s", res.stdout)
	}
	if strings.Contains(res.stdout, "hidden@x.org") {
		t.Fatalf("bcc leaked into preview")
	}
	if res.stderr != "" {
		t.Fatalf("unexpected warnings %q", res.stderr)
	}
}

func TestAuthStatusShowsClaims(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "42",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sess := newSession()
	if err := sess.Set(token, true); err != nil {
		t.Fatalf("set token: %v", err)
	}

	res := run(t, apitest.New(t), sess, "", "auth", "status")
	if res.err != nil {
		t.Fatalf("status: %v", res.err)
	}
	for _, want := range []string{"Session: persistent", "Subject: 42", "(valid)"} {
		if !strings.Contains(res.stdout, want) {
			t.Fatalf("output missing %q:\n%s", want, res.stdout)
		}
	}
}

func TestLogoutClearsSession(t *testing.T) {
	srv := apitest.New(t)
	sess := signedIn(t)

	res := run(t, srv, sess, "", "auth", "logout")
	if res.err != nil {
		t.Fatalf("logout: %v", res.err)
	}
	if token, _ := sess.Token(); token != "" {
		t.Fatalf("expected cleared session, got %q", token)
	}
}

func TestParseCTA(t *testing.T) {
	cta, err := parseCTA(" Donate | https://x.org/give ")
	if err != nil {
		t.Fatalf("parseCTA: %v", err)
	}
	if cta.Text != "Donate" || cta.Link != "https://x.org/give" {
		t.Fatalf("unexpected cta %+v", cta)
	}
	if _, err := parseCTA("no separator"); err == nil {
		t.Fatalf("expected error without separator")
	}
}

func TestConfigShowNeedsNoSession(t *testing.T) {
	res := run(t, nil, nil, "", "config", "show")
	if res.err != nil {
		t.Fatalf("config show: %v", res.err)
	}
	if !strings.Contains(res.stdout, "base_url: http://localhost:5000") {
		t.Fatalf("unexpected output:\n%s", res.stdout)
	}
}
