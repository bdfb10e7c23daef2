package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mailconsole/internal/api"
)

// passwordMask stands in for the stored SMTP password, which is never shown.
const passwordMask = "••••••••"

func newSMTPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smtp",
		Short: "SMTP credentials used by the server to deliver mail",
	}
	cmd.AddCommand(newSMTPShowCmd(a))
	cmd.AddCommand(newSMTPSetCmd(a))
	return cmd
}

func newSMTPShowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the SMTP account",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := a.client.Credentials(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:     %s\n", settings.EmailUser)
			if settings.EmailPass != "" {
				fmt.Fprintf(out, "Password: %s\n", passwordMask)
			} else {
				fmt.Fprintln(out, "Password: (not set)")
			}
			return nil
		},
	}
	return cmd
}

func newSMTPSetCmd(a *app) *cobra.Command {
	var (
		user           string
		password       string
		promptPassword bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the SMTP account; the stored password is kept unless a new one is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(user) == "" {
				return fmt.Errorf("--user is required")
			}
			if promptPassword {
				secret, err := a.readSecret(cmd, "SMTP password: ")
				if err != nil {
					return err
				}
				password = secret
			}

			if err := a.client.UpdateCredentials(cmd.Context(), smtpUpdate(user, password)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "SMTP credentials updated.")
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "SMTP username")
	cmd.Flags().StringVar(&password, "password", "", "New SMTP password")
	cmd.Flags().BoolVar(&promptPassword, "prompt-password", false, "Prompt for the new password")
	cmd.MarkFlagsMutuallyExclusive("password", "prompt-password")

	return cmd
}

// smtpUpdate omits the password when it is blank or still the mask.
func smtpUpdate(user, password string) api.SMTPUpdate {
	update := api.SMTPUpdate{EmailUser: strings.TrimSpace(user)}
	if strings.TrimSpace(password) != "" && password != passwordMask {
		update.EmailPass = &password
	}
	return update
}
