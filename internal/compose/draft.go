// Package compose holds the in-memory draft of a bulk email.
//
// A Draft is only ever changed by folding an Action through Reduce. Every
// reduction copies the slices it touches, so a Draft value handed out earlier
// never changes underneath its holder.
package compose

import (
	"strings"

	"mailconsole/internal/api"
)

type List string

const (
	ListTo  List = "to"
	ListBcc List = "bcc"
)

type Field string

const (
	FieldFrom    Field = "from"
	FieldSubject Field = "subject"
	FieldBody    Field = "body"
)

type SenderField string

const (
	SenderName     SenderField = "name"
	SenderPosition SenderField = "position"
	SenderEmail    SenderField = "email"
	SenderPhone    SenderField = "phone"
)

type CTAField string

const (
	CTAText CTAField = "text"
	CTALink CTAField = "link"
)

type Draft struct {
	From        string
	To          []string
	Bcc         []string
	Subject     string
	Body        string
	CTAs        []api.CTA
	SenderInfo  api.SenderInfo
	Attachments []api.Attachment
}

// New returns an empty draft with one blank recipient row and one blank
// call-to-action.
func New(from string) Draft {
	return Draft{
		From: from,
		To:   []string{""},
		Bcc:  []string{},
		CTAs: []api.CTA{{}},
	}
}

func (d Draft) List(list List) []string {
	if list == ListBcc {
		return d.Bcc
	}
	return d.To
}

// Request builds the send payload. Blank recipients are dropped.
func (d Draft) Request() api.SendRequest {
	return api.SendRequest{
		From:        d.From,
		To:          nonBlank(d.To),
		Bcc:         nonBlank(d.Bcc),
		Subject:     d.Subject,
		Body:        d.Body,
		CTAs:        append([]api.CTA{}, d.CTAs...),
		SenderInfo:  d.SenderInfo,
		Attachments: append([]api.Attachment{}, d.Attachments...),
	}
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
