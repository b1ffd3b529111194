// Package cli holds the birthdaybot command line.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X birthdaybot/cli.Version=...".
var Version = "dev"

// NewRootCommand creates the root command for the birthdaybot CLI.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "birthdaybot",
		Short: "Discord bot that announces birthdays",
		Long: `birthdaybot stores member birthdays per Discord server and announces them
in each server's announcement channel at a configured local hour.

Configuration is read from .env and the environment. Flags override both.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("storage", "", "storage driver (sqlite|json|redis)")
	cmd.PersistentFlags().String("db", "", "path to the SQLite database")
	cmd.PersistentFlags().String("data-file", "", "path to the JSON data file")
	cmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewImportCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("birthdaybot " + Version)
		},
	}
}
