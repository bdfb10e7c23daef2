package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDashboardCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show counts, recent mail and users",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := a.dashboard()
			if err := d.Load(cmd.Context()); err != nil {
				a.logger.Debug("dashboard load", "err", err)
				return err
			}

			s := d.Snapshot()
			out := cmd.OutOrStdout()
			if s.Me.Username != "" {
				fmt.Fprintf(out, "Signed in as %s\n\n", s.Me.Username)
			}
			printStats(out, s.Stats)

			sent := s.Sent
			if limit > 0 && len(sent) > limit {
				sent = sent[:limit]
			}
			fmt.Fprintf(out, "\nRecent sent (%d of %d)\n", len(sent), len(s.Sent))
			printEmails(out, sent)

			fmt.Fprintf(out, "\nUsers (%d)\n", len(s.Users))
			printUsers(out, s.Users)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Sent emails to show (0 for all)")

	return cmd
}
