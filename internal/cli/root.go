package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultDeps())
}

func newRootCmd(d deps) *cobra.Command {
	a := &app{deps: d}
	var verbose bool

	cmd := &cobra.Command{
		Use:           "mailconsole",
		Short:         "mailconsole is an operator console for the bulk email service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(cmd, verbose); err != nil {
				return err
			}
			return a.authorize(cmd)
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log API requests to stderr")

	cmd.AddCommand(newAuthCmd(a))
	cmd.AddCommand(newDashboardCmd(a))
	cmd.AddCommand(newEmailCmd(a))
	cmd.AddCommand(newComposeCmd(a))
	cmd.AddCommand(newUsersCmd(a))
	cmd.AddCommand(newSMTPCmd(a))
	cmd.AddCommand(newConfigCmd(a))

	cmd.SetErr(os.Stderr)
	cmd.SetOut(os.Stdout)

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
