package commands

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vico",
	Short: "Vico is a locally-hosted conversational assistant over a personal memory store",
}

// Execute runs the root command.
func Execute() error {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	return rootCmd.Execute()
}
