package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "helpdesk",
		Short: "Multi-tenant IT helpdesk API",
		Long:  `Helpdesk serves the ticket API and ships the schema migration and maintenance sweep commands.`,
		// Running the binary without a subcommand starts the server.
		RunE:         runServe,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSweepCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
