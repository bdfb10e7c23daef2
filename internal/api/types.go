package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusSent  Status = "sent"
	StatusTrash Status = "trash"
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Email struct {
	ID        int64      `json:"id"`
	From      string     `json:"from"`
	To        Recipients `json:"to"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Read      bool       `json:"read"`
	Status    Status     `json:"status"`
}

// Timestamps arrive as strings in whatever shape the backend's database
// produced. Unparseable or empty values decode to the zero time instead of
// failing the whole record.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw json.RawMessage) time.Time {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return time.Time{}
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var aux struct {
		*plain
		CreatedAt json.RawMessage `json:"createdAt"`
	}
	aux.plain = (*plain)(u)
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	u.CreatedAt = parseTimestamp(aux.CreatedAt)
	return nil
}

func (e *Email) UnmarshalJSON(data []byte) error {
	type plain Email
	var aux struct {
		*plain
		CreatedAt json.RawMessage `json:"createdAt"`
		UpdatedAt json.RawMessage `json:"updatedAt"`
	}
	aux.plain = (*plain)(e)
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.CreatedAt = parseTimestamp(aux.CreatedAt)
	e.UpdatedAt = parseTimestamp(aux.UpdatedAt)
	return nil
}

// Recipients decodes either a single string or an array of strings; the
// backend has returned both shapes for the "to" field.
type Recipients []string

func (r *Recipients) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = nil
		return nil
	}
	if data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		if single == "" {
			*r = nil
			return nil
		}
		*r = Recipients{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("recipients: %w", err)
	}
	*r = list
	return nil
}

func (r Recipients) String() string {
	return strings.Join(r, ", ")
}

type Stats struct {
	Sent  int `json:"sent"`
	Users int `json:"users"`
	Trash int `json:"trash"`
}

type CTA struct {
	Text string `json:"text"`
	Link string `json:"link"`
}

type SenderInfo struct {
	Name     string `json:"name"`
	Position string `json:"position"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

type Attachment struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	CID     string `json:"cid,omitempty"`
}

type SendRequest struct {
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Bcc         []string     `json:"bcc"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	CTAs        []CTA        `json:"ctas"`
	SenderInfo  SenderInfo   `json:"senderInfo"`
	Attachments []Attachment `json:"attachments"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type SMTPSettings struct {
	EmailUser string `json:"emailUser"`
	EmailPass string `json:"emailPass,omitempty"`
}

// SMTPUpdate is the PUT body for credentials. A nil EmailPass keeps the
// stored password.
type SMTPUpdate struct {
	EmailUser string  `json:"emailUser"`
	EmailPass *string `json:"emailPass,omitempty"`
}
