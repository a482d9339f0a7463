package root

import (
	"github.com/spf13/cobra"
)

// Exported RootCmd
var RootCmd = &cobra.Command{
	Use:           "logctl",
	Short:         "Log sink CLI",
	Long:          "Command line interface for the log sink API. Set LOGCTL_API_URL to point at a server.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// GetRoot returns the RootCmd.
func GetRoot() *cobra.Command {
	return RootCmd
}
