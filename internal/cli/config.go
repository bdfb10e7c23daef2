package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mailconsole/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change console settings",
	}
	cmd.AddCommand(newConfigShowCmd(a), newConfigEditCmd(a), newConfigSetURLCmd(a))
	return withAccess(cmd, accessLocal)
}

func newConfigShowCmd(a *app) *cobra.Command {
	var pathOnly bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings (file, env and defaults merged)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pathOnly {
				path, err := config.ConfigPath()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(a.cfg); err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVar(&pathOnly, "path", false, "Print only the config file location")
	return cmd
}

// The file is written from the effective settings first when it does not
// exist yet, so the editor never opens an empty buffer.
func newConfigEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open the config file in $EDITOR",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}
			editor := strings.TrimSpace(os.Getenv("EDITOR"))
			if editor == "" {
				return fmt.Errorf("EDITOR is not set; edit %s by hand", path)
			}
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				if _, err := config.Save(a.cfg); err != nil {
					return err
				}
			}

			run := exec.CommandContext(cmd.Context(), editor, path)
			run.Stdin = cmd.InOrStdin()
			run.Stdout = cmd.OutOrStdout()
			run.Stderr = cmd.ErrOrStderr()
			if err := run.Run(); err != nil {
				return fmt.Errorf("run %s: %w", editor, err)
			}
			return nil
		},
	}
}

func newConfigSetURLCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-url <base-url>",
		Short: "Point the console at an API server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			next := a.cfg
			next.API.BaseURL = strings.TrimRight(strings.TrimSpace(args[0]), "/")
			if err := config.Validate(next); err != nil {
				return err
			}
			path, err := config.Save(next)
			if err != nil {
				return err
			}
			a.cfg = next
			fmt.Fprintf(cmd.OutOrStdout(), "API server set to %s (%s)\n", next.API.BaseURL, path)
			return nil
		},
	}
}
