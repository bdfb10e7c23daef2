package compose

import (
	"strings"

	"github.com/google/uuid"

	"mailconsole/internal/api"
)

// Action is one change to a draft. The set of actions is closed.
type Action interface {
	isAction()
}

type SetField struct {
	Field Field
	Value string
}

type SetSenderInfo struct {
	Field SenderField
	Value string
}

type AddRecipient struct {
	List List
}

type UpdateRecipient struct {
	List  List
	Index int
	Value string
}

// RemoveRecipient never leaves the To list without a row.
type RemoveRecipient struct {
	List  List
	Index int
}

type AppendRecipients struct {
	List      List
	Addresses []string
}

type AddCTA struct{}

type UpdateCTA struct {
	Index int
	Field CTAField
	Value string
}

type RemoveCTA struct {
	Index int
}

type AddAttachment struct {
	Attachment api.Attachment
}

type RemoveAttachment struct {
	Index int
}

// Reset replaces the draft with a fresh one sent from From.
type Reset struct {
	From string
}

func (SetField) isAction()         {}
func (SetSenderInfo) isAction()    {}
func (AddRecipient) isAction()     {}
func (UpdateRecipient) isAction()  {}
func (RemoveRecipient) isAction()  {}
func (AppendRecipients) isAction() {}
func (AddCTA) isAction()           {}
func (UpdateCTA) isAction()        {}
func (RemoveCTA) isAction()        {}
func (AddAttachment) isAction()    {}
func (RemoveAttachment) isAction() {}
func (Reset) isAction()            {}

const contentIDPrefix = "image_"

var newContentID = func() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return contentIDPrefix + id[:9]
}

// Reduce applies a to d and returns the new draft. Out-of-range indexes
// leave the draft unchanged.
func Reduce(d Draft, a Action) Draft {
	switch a := a.(type) {
	case SetField:
		switch a.Field {
		case FieldFrom:
			d.From = a.Value
		case FieldSubject:
			d.Subject = a.Value
		case FieldBody:
			d.Body = a.Value
		}
	case SetSenderInfo:
		switch a.Field {
		case SenderName:
			d.SenderInfo.Name = a.Value
		case SenderPosition:
			d.SenderInfo.Position = a.Value
		case SenderEmail:
			d.SenderInfo.Email = a.Value
		case SenderPhone:
			d.SenderInfo.Phone = a.Value
		}
	case AddRecipient:
		d = d.withList(a.List, appendCopy(d.List(a.List), ""))
	case UpdateRecipient:
		list := d.List(a.List)
		if a.Index < 0 || a.Index >= len(list) {
			return d
		}
		next := append([]string{}, list...)
		next[a.Index] = a.Value
		d = d.withList(a.List, next)
	case RemoveRecipient:
		list := d.List(a.List)
		if a.Index < 0 || a.Index >= len(list) {
			return d
		}
		if a.List == ListTo && len(list) <= 1 {
			return d
		}
		d = d.withList(a.List, removeAt(list, a.Index))
	case AppendRecipients:
		if len(a.Addresses) == 0 {
			return d
		}
		d = d.withList(a.List, appendCopy(d.List(a.List), a.Addresses...))
	case AddCTA:
		d.CTAs = appendCopy(d.CTAs, api.CTA{})
	case UpdateCTA:
		if a.Index < 0 || a.Index >= len(d.CTAs) {
			return d
		}
		next := append([]api.CTA{}, d.CTAs...)
		switch a.Field {
		case CTAText:
			next[a.Index].Text = a.Value
		case CTALink:
			next[a.Index].Link = a.Value
		default:
			return d
		}
		d.CTAs = next
	case RemoveCTA:
		if a.Index < 0 || a.Index >= len(d.CTAs) {
			return d
		}
		d.CTAs = removeAt(d.CTAs, a.Index)
	case AddAttachment:
		att := a.Attachment
		if isImage(att.Type) {
			if att.CID == "" || hasContentID(d.Attachments, att.CID) {
				att.CID = uniqueContentID(d.Attachments)
			}
		} else {
			att.CID = ""
		}
		d.Attachments = appendCopy(d.Attachments, att)
	case RemoveAttachment:
		if a.Index < 0 || a.Index >= len(d.Attachments) {
			return d
		}
		d.Attachments = removeAt(d.Attachments, a.Index)
	case Reset:
		return New(a.From)
	}
	return d
}

func (d Draft) withList(list List, values []string) Draft {
	if list == ListBcc {
		d.Bcc = values
	} else {
		d.To = values
	}
	return d
}

func appendCopy[T any](list []T, items ...T) []T {
	next := make([]T, 0, len(list)+len(items))
	next = append(next, list...)
	return append(next, items...)
}

func removeAt[T any](list []T, index int) []T {
	next := make([]T, 0, len(list)-1)
	next = append(next, list[:index]...)
	return append(next, list[index+1:]...)
}

func isImage(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "image/")
}

func hasContentID(atts []api.Attachment, cid string) bool {
	for _, a := range atts {
		if a.CID == cid {
			return true
		}
	}
	return false
}

func uniqueContentID(atts []api.Attachment) string {
	for {
		cid := newContentID()
		if !hasContentID(atts, cid) {
			return cid
		}
	}
}
