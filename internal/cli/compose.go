package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mailconsole/internal/compose"
	"mailconsole/internal/email"
)

// draftFlags are the compose form fields shared by `email send` and
// `compose preview`.
type draftFlags struct {
	from     string
	to       []string
	bcc      []string
	toFile   string
	bccFile  string
	subject  string
	body     string
	bodyFile string
	ctas     []string

	senderName     string
	senderPosition string
	senderEmail    string
	senderPhone    string

	attachments []string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.from, "from", "", "Sender address (defaults to compose.default_from)")
	flags.StringSliceVar(&f.to, "to", nil, "Recipients (repeatable or comma-separated)")
	flags.StringSliceVar(&f.bcc, "bcc", nil, "Blind-copy recipients (repeatable or comma-separated)")
	flags.StringVar(&f.toFile, "to-file", "", "Import recipients from a file, one address per line")
	flags.StringVar(&f.bccFile, "bcc-file", "", "Import blind-copy recipients from a file")
	flags.StringVar(&f.subject, "subject", "", "Subject")
	flags.StringVar(&f.body, "body", "", "Message body")
	flags.StringVar(&f.bodyFile, "body-file", "", "Path to file containing message body")
	flags.StringArrayVar(&f.ctas, "cta", nil, "Call-to-action as \"text|link\" (repeatable)")
	flags.StringVar(&f.senderName, "sender-name", "", "Signature name")
	flags.StringVar(&f.senderPosition, "sender-position", "", "Signature position")
	flags.StringVar(&f.senderEmail, "sender-email", "", "Signature email")
	flags.StringVar(&f.senderPhone, "sender-phone", "", "Signature phone")
	flags.StringArrayVar(&f.attachments, "attach", nil, "Attachment file path (repeatable)")
}

// build folds the flags into a draft through the same actions an interactive
// form would dispatch.
func (f *draftFlags) build(cmd *cobra.Command, a *app) (*compose.Model, error) {
	m := compose.NewModel(a.cfg.Compose.DefaultFrom)
	if f.from != "" {
		m.Dispatch(compose.SetField{Field: compose.FieldFrom, Value: f.from})
	}

	for _, addr := range splitList(f.to) {
		m.FillRecipient(compose.ListTo, addr)
	}
	for _, addr := range splitList(f.bcc) {
		m.FillRecipient(compose.ListBcc, addr)
	}
	imports := []struct {
		list compose.List
		path string
	}{{compose.ListTo, f.toFile}, {compose.ListBcc, f.bccFile}}
	for _, imp := range imports {
		if imp.path == "" {
			continue
		}
		n, err := m.ImportRecipientFile(imp.list, imp.path)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), compose.ImportSummary(n, imp.list))
	}
	m.DropBlankRecipients(compose.ListTo)
	m.DropBlankRecipients(compose.ListBcc)

	body, err := loadBody(f.body, f.bodyFile)
	if err != nil {
		return nil, err
	}
	m.Dispatch(
		compose.SetField{Field: compose.FieldSubject, Value: f.subject},
		compose.SetField{Field: compose.FieldBody, Value: body},
		compose.SetSenderInfo{Field: compose.SenderName, Value: f.senderName},
		compose.SetSenderInfo{Field: compose.SenderPosition, Value: f.senderPosition},
		compose.SetSenderInfo{Field: compose.SenderEmail, Value: f.senderEmail},
		compose.SetSenderInfo{Field: compose.SenderPhone, Value: f.senderPhone},
	)

	for i, raw := range f.ctas {
		cta, err := parseCTA(raw)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			m.Dispatch(compose.AddCTA{})
		}
		m.Dispatch(
			compose.UpdateCTA{Index: i, Field: compose.CTAText, Value: cta.Text},
			compose.UpdateCTA{Index: i, Field: compose.CTALink, Value: cta.Link},
		)
	}

	if len(f.attachments) > 0 {
		if err := m.AttachFiles(cmd.Context(), f.attachments); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func newComposeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Work with drafts without sending them",
	}
	cmd.AddCommand(newComposePreviewCmd(a))
	return withAccess(cmd, accessLocal)
}

func newComposePreviewCmd(a *app) *cobra.Command {
	var (
		flags  draftFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render a draft as the message recipients would receive",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := flags.build(cmd, a)
			if err != nil {
				return err
			}

			draft := m.Draft()
			if err := compose.Validate(draft); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}

			raw, err := email.BuildPreview(draft.Request(), time.Now())
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(raw)
				return err
			}
			if err := os.WriteFile(output, raw, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Preview written to %s\n", output)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the message to a file instead of stdout (.eml)")

	return cmd
}
