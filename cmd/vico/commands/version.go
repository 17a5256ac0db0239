package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the build version, overridable via -ldflags "-X ...Version=...".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print vico's version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
		return nil
	},
}
