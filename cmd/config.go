package cmd

import (
	"github.com/spf13/cobra"
)

var ConfigCmd = &cobra.Command{
	Use:              "config",
	Short:            "Manage the client configuration",
	Long:             `Points the CLI at a kaitiaki server, stores your access token and picks the default signing algorithm.`,
	PersistentPreRun: setupLogger,
}

func init() {
	addLoggingFlags(ConfigCmd)
}

// GetConfigCmd returns the ConfigCmd for testing.
func GetConfigCmd() *cobra.Command {
	return ConfigCmd
}

// ResetConfigState resets config command flags for testing.
func ResetConfigState() {
	resetConfigSetServerState()
	resetConfigSetTokenState()
}
