package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "support-bot",
		Short: "Discord support bot with AI ticket assistance",
		Long:  `support-bot runs the Discord ticket bot and its operator API, and manages the database schema.`,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newHashPasswordCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
