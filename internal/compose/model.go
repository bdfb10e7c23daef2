package compose

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"mailconsole/internal/api"
)

var (
	ErrIncomplete     = errors.New("Please fill all required fields") //nolint:staticcheck // shown to the operator verbatim
	ErrSubmitInFlight = errors.New("a submission is already in progress")
)

// Sender delivers a finished draft.
type Sender interface {
	Send(ctx context.Context, req api.SendRequest) (api.Email, error)
}

// Model owns one draft. Dispatch serializes reductions so that concurrent
// callers always fold over the latest draft.
type Model struct {
	defaultFrom string

	mu    sync.Mutex
	draft Draft

	sending  atomic.Bool
	readFile func(ctx context.Context, path string) ([]byte, error)
}

func NewModel(defaultFrom string) *Model {
	return &Model{defaultFrom: defaultFrom, draft: New(defaultFrom)}
}

func (m *Model) Draft() Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft
}

func (m *Model) Dispatch(actions ...Action) Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range actions {
		m.draft = Reduce(m.draft, a)
	}
	return m.draft
}

// Discard drops the draft and starts a fresh one.
func (m *Model) Discard() {
	m.Dispatch(Reset{From: m.defaultFrom})
}

// Sending reports whether a submission is in flight.
func (m *Model) Sending() bool {
	return m.sending.Load()
}

// FillRecipient writes address into the trailing blank row of list, or adds a
// row when there is none.
func (m *Model) FillRecipient(list List, address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.draft.List(list)
	if n := len(rows); n > 0 && strings.TrimSpace(rows[n-1]) == "" {
		m.draft = Reduce(m.draft, UpdateRecipient{List: list, Index: n - 1, Value: address})
		return
	}
	m.draft = Reduce(m.draft, AddRecipient{List: list})
	m.draft = Reduce(m.draft, UpdateRecipient{List: list, Index: len(rows), Value: address})
}

// DropBlankRecipients removes blank rows from list, keeping the single row
// the To list always has.
func (m *Model) DropBlankRecipients(list List) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.draft.List(list)
	for i := len(rows) - 1; i >= 0; i-- {
		if strings.TrimSpace(rows[i]) == "" {
			m.draft = Reduce(m.draft, RemoveRecipient{List: list, Index: i})
		}
	}
}

// Validate reports ErrIncomplete unless sender, subject and body are set,
// every To row is filled and every call-to-action has both text and link.
func Validate(d Draft) error {
	if blank(d.From) || blank(d.Subject) || blank(d.Body) {
		return ErrIncomplete
	}
	if len(d.To) == 0 || len(d.CTAs) == 0 {
		return ErrIncomplete
	}
	for _, to := range d.To {
		if blank(to) {
			return ErrIncomplete
		}
	}
	for _, cta := range d.CTAs {
		if blank(cta.Text) || blank(cta.Link) {
			return ErrIncomplete
		}
	}
	return nil
}

// Submit validates the draft and sends it. On failure the draft is kept for
// correction; on success it is discarded and the created record returned.
func (m *Model) Submit(ctx context.Context, sender Sender) (api.Email, error) {
	if !m.sending.CompareAndSwap(false, true) {
		return api.Email{}, ErrSubmitInFlight
	}
	defer m.sending.Store(false)

	d := m.Draft()
	if err := Validate(d); err != nil {
		return api.Email{}, err
	}

	email, err := sender.Send(ctx, d.Request())
	if err != nil {
		return api.Email{}, err
	}

	m.Discard()
	return email, nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
