package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"mailconsole/internal/api"
)

func printEmails(out io.Writer, emails []api.Email) {
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTO\tSUBJECT")
	for _, e := range emails {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, formatDate(e.CreatedAt), truncate(e.To.String(), 40), e.Subject)
	}
	_ = tw.Flush()
}

func printUsers(out io.Writer, users []api.User) {
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Name, formatDate(u.CreatedAt))
	}
	_ = tw.Flush()
}

func printStats(out io.Writer, stats api.Stats) {
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "SENT\tTRASH\tUSERS")
	fmt.Fprintf(tw, "%d\t%d\t%d\n", stats.Sent, stats.Trash, stats.Users)
	_ = tw.Flush()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.RFC3339)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
