package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mailconsole/internal/api"
	"mailconsole/internal/compose"
)

func newEmailCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Send and manage sent mail",
	}
	cmd.AddCommand(newEmailListCmd(a))
	cmd.AddCommand(newEmailSendCmd(a))
	cmd.AddCommand(newEmailTrashCmd(a))
	cmd.AddCommand(newEmailPurgeCmd(a))
	return cmd
}

func newEmailListCmd(a *app) *cobra.Command {
	var trash bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sent emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			status := api.StatusSent
			if trash {
				status = api.StatusTrash
			}
			emails, err := a.client.History(cmd.Context(), status)
			if err != nil {
				return err
			}
			printEmails(cmd.OutOrStdout(), emails)
			return nil
		},
	}

	cmd.Flags().BoolVar(&trash, "trash", false, "List the trash instead")

	return cmd
}

func newEmailSendCmd(a *app) *cobra.Command {
	var flags draftFlags

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a bulk email",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := flags.build(cmd, a)
			if err != nil {
				return err
			}

			d := m.Draft()
			if err := compose.Validate(d); err != nil {
				return err
			}

			// Counters are only a courtesy line; a failure here must not
			// block the send.
			board := a.dashboard()
			countsKnown := true
			if err := board.LoadStats(cmd.Context()); err != nil {
				a.logger.Debug("sent count unavailable", "err", err)
				countsKnown = false
			}

			created, err := m.Submit(cmd.Context(), a.client)
			if err != nil {
				return err
			}
			board.RecordSent(cmd.Context(), created)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Email sent (id %d) to %d recipients", created.ID, len(d.Request().To))
			if n := len(d.Request().Bcc); n > 0 {
				fmt.Fprintf(out, " and %d bcc", n)
			}
			fmt.Fprintln(out, ".")
			if countsKnown {
				fmt.Fprintf(out, "Sent total: %d.\n", board.Snapshot().Stats.Sent)
			}
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func newEmailTrashCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trash <id>",
		Short: "Move a sent email to the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := a.dashboard().MoveToTrash(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Moved to trash.")
			return nil
		},
	}
	return cmd
}

func newEmailPurgeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge <id>",
		Short: "Permanently delete an email from the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.dashboard().DeletePermanently(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted permanently.")
			return nil
		},
	}
	return cmd
}

var _ compose.Sender = (*api.Client)(nil)
