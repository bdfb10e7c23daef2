// Package email renders a send request the way a recipient would receive it,
// so the operator can inspect a draft before it leaves the console.
package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/microcosm-cc/bluemonday"

	"mailconsole/internal/api"
)

var bodyPolicy = bluemonday.UGCPolicy()

// BuildPreview renders req as an RFC 5322 message with a text part, an HTML
// part and one part per attachment. Bcc recipients are never written to a
// header.
func BuildPreview(req api.SendRequest, now time.Time) ([]byte, error) {
	if strings.TrimSpace(req.From) == "" {
		return nil, fmt.Errorf("from address is required")
	}

	var h mail.Header
	h.SetDate(now)
	h.SetSubject(req.Subject)
	h.SetAddressList("From", []*mail.Address{{Name: req.SenderInfo.Name, Address: req.From}})
	if len(req.To) > 0 {
		h.SetAddressList("To", addressList(req.To))
	}
	if req.SenderInfo.Email != "" {
		h.SetAddressList("Reply-To", []*mail.Address{{Name: req.SenderInfo.Name, Address: req.SenderInfo.Email}})
	}
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	if err := writeInline(tw, "text/plain", PlainText(req)); err != nil {
		return nil, err
	}
	if err := writeInline(tw, "text/html", HTML(req)); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}

	for _, att := range req.Attachments {
		data, err := base64.StdEncoding.DecodeString(att.Content)
		if err != nil {
			return nil, fmt.Errorf("decode attachment %s: %w", att.Name, err)
		}

		w, err := createAttachmentPart(mw, att)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			_ = w.Close()
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PlainText is the text/plain rendering: body, then one line per
// call-to-action, then the sender signature.
func PlainText(req api.SendRequest) string {
	var b strings.Builder
	b.WriteString(req.Body)
	b.WriteString("\n")

	for _, cta := range req.CTAs {
		if cta.Text == "" && cta.Link == "" {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s", cta.Text, cta.Link)
	}
	if len(req.CTAs) > 0 {
		b.WriteString("\n")
	}

	if sig := signatureLines(req.SenderInfo); len(sig) > 0 {
		b.WriteString("\n--\n")
		b.WriteString(strings.Join(sig, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

func HTML(req api.SendRequest) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><body>")

	body := bodyPolicy.Sanitize(req.Body)
	body = strings.ReplaceAll(body, "\r\n", "\n")
	b.WriteString("<div>")
	b.WriteString(strings.ReplaceAll(body, "\n", "<br>"))
	b.WriteString("</div>")

	for _, att := range req.Attachments {
		if att.CID == "" {
			continue
		}
		fmt.Fprintf(&b, `<p><img src="cid:%s" alt="%s"></p>`, html.EscapeString(att.CID), html.EscapeString(att.Name))
	}

	for _, cta := range req.CTAs {
		if cta.Text == "" && cta.Link == "" {
			continue
		}
		fmt.Fprintf(&b, `<p><a href="%s" style="display:inline-block;padding:10px 18px;background:#ff795f;color:#fff;text-decoration:none;border-radius:4px">%s</a></p>`,
			html.EscapeString(cta.Link), html.EscapeString(cta.Text))
	}

	if sig := signatureLines(req.SenderInfo); len(sig) > 0 {
		b.WriteString("<p>")
		for i, line := range sig {
			if i > 0 {
				b.WriteString("<br>")
			}
			b.WriteString(html.EscapeString(line))
		}
		b.WriteString("</p>")
	}

	b.WriteString("</body></html>")
	return b.String()
}

// createAttachmentPart writes images carrying a content-id as inline parts so
// the HTML body can reference them; everything else is a plain attachment.
func createAttachmentPart(mw *mail.Writer, att api.Attachment) (io.WriteCloser, error) {
	if att.CID != "" {
		var h mail.InlineHeader
		h.SetContentType(contentType(att.Type), map[string]string{"name": att.Name})
		h.Set("Content-Transfer-Encoding", "base64")
		h.Set("Content-Id", "<"+att.CID+">")
		return mw.CreateSingleInline(h)
	}

	var h mail.AttachmentHeader
	h.SetContentType(contentType(att.Type), nil)
	h.SetFilename(att.Name)
	return mw.CreateAttachment(h)
}

func signatureLines(info api.SenderInfo) []string {
	var lines []string
	for _, v := range []string{info.Name, info.Position, info.Email, info.Phone} {
		if v = strings.TrimSpace(v); v != "" {
			lines = append(lines, v)
		}
	}
	return lines
}

func writeInline(tw *mail.InlineWriter, mediaType, content string) error {
	var h mail.InlineHeader
	h.SetContentType(mediaType, map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, content); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func addressList(values []string) []*mail.Address {
	out := make([]*mail.Address, 0, len(values))
	for _, v := range values {
		out = append(out, &mail.Address{Address: v})
	}
	return out
}

func contentType(value string) string {
	if value == "" {
		return "application/octet-stream"
	}
	return value
}
