package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"mailconsole/internal/api"
	"mailconsole/internal/dashboard"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign out and inspect the session",
	}
	cmd.AddCommand(newAuthLoginCmd(a))
	cmd.AddCommand(newAuthRegisterCmd(a))
	cmd.AddCommand(newAuthLogoutCmd(a))
	cmd.AddCommand(newAuthStatusCmd(a))
	return cmd
}

func newAuthLoginCmd(a *app) *cobra.Command {
	var (
		username string
		password string
		remember bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(username) == "" {
				return fmt.Errorf("--username is required")
			}
			if !cmd.Flags().Changed("password") {
				secret, err := a.readSecret(cmd, "Password: ")
				if err != nil {
					return err
				}
				password = secret
			}

			token, err := a.client.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if err := a.session.Set(token, remember); err != nil {
				return err
			}

			scope := "this terminal"
			if remember {
				scope = "this machine"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (remembered on %s).\n", username, scope)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	cmd.Flags().BoolVar(&remember, "remember", false, "Keep the session in the OS keyring instead of this terminal only")

	return withAccess(cmd, accessPublic)
}

func newAuthRegisterCmd(a *app) *cobra.Command {
	var (
		username string
		name     string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an operator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, confirm, err := a.readRegistration(cmd, username, name)
			if err != nil {
				return err
			}
			if in.Password != confirm {
				return dashboard.ErrPasswordMismatch
			}

			user, err := a.client.Register(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s created. Run `mailconsole auth login -u %s` to sign in.\n", user.Username, user.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&name, "name", "", "Display name")

	return withAccess(cmd, accessPublic)
}

// readRegistration validates the identity flags and prompts for a password
// and its confirmation.
func (a *app) readRegistration(cmd *cobra.Command, username, name string) (api.RegisterRequest, string, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(name) == "" {
		return api.RegisterRequest{}, "", fmt.Errorf("--username and --name are required")
	}
	password, err := a.readSecret(cmd, "Password: ")
	if err != nil {
		return api.RegisterRequest{}, "", err
	}
	confirm, err := a.readSecret(cmd, "Confirm password: ")
	if err != nil {
		return api.RegisterRequest{}, "", err
	}
	if password == "" {
		return api.RegisterRequest{}, "", fmt.Errorf("password must not be empty")
	}
	return api.RegisterRequest{Username: username, Name: name, Password: password}, confirm, nil
}

func newAuthLogoutCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session on the server and forget the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.dashboard().Logout(cmd.Context()); err != nil {
				return err
			}
			if a.user != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Signed out %s.\n", a.user.Username)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
	return cmd
}

func newAuthStatusCmd(a *app) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where the session token is kept",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			token, err := a.session.Token()
			if err != nil {
				return err
			}
			if token == "" {
				fmt.Fprintln(out, "Not signed in.")
				return nil
			}

			fmt.Fprintf(out, "Session: %s\n", a.session.Scope())
			printClaims(cmd, token)

			if !verify {
				return nil
			}
			user, err := a.client.WhoAmI(cmd.Context(), token)
			if err != nil {
				if errors.Is(err, api.ErrUnauthorized) {
					fmt.Fprintln(out, "Server: token rejected")
					return nil
				}
				return err
			}
			fmt.Fprintf(out, "Server: signed in as %s (%s)\n", user.Username, user.Name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Ask the server who the token belongs to")

	return withAccess(cmd, accessOpen)
}

// printClaims shows the subject and expiry of a JWT session token. The
// signature is not checked; only the server decides whether a token is valid.
func printClaims(cmd *cobra.Command, token string) {
	out := cmd.OutOrStdout()

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		fmt.Fprintln(out, "Token: opaque")
		return
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		fmt.Fprintf(out, "Subject: %s\n", sub)
	}
	for _, key := range []string{"id", "username"} {
		if v, ok := claims[key]; ok {
			fmt.Fprintf(out, "%s: %v\n", strings.ToUpper(key[:1])+key[1:], v)
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		state := "valid"
		if exp.Before(time.Now()) {
			state = "expired"
		}
		fmt.Fprintf(out, "Expires: %s (%s)\n", exp.Format(time.RFC3339), state)
	}
}
