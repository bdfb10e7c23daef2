package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage operator accounts",
	}
	cmd.AddCommand(newUsersListCmd(a))
	cmd.AddCommand(newUsersAddCmd(a))
	cmd.AddCommand(newUsersDeleteCmd(a))
	return cmd
}

func newUsersListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.client.Users(cmd.Context())
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), users)
			return nil
		},
	}
	return cmd
}

func newUsersAddCmd(a *app) *cobra.Command {
	var (
		username string
		name     string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, confirm, err := a.readRegistration(cmd, username, name)
			if err != nil {
				return err
			}

			d := a.dashboard()
			created, err := d.AddUser(cmd.Context(), in, confirm)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "User %s added.\n", created.Username)
			printUsers(cmd.OutOrStdout(), d.Snapshot().Users)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&name, "name", "", "Display name")

	return cmd
}

func newUsersDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.dashboard().DeleteUser(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "User deleted.")
			return nil
		},
	}
	return cmd
}
