package cmd

import (
	"github.com/spf13/cobra"
)

var (
	serverConfigPath string

	ServerCmd = &cobra.Command{
		Use:              "server",
		Short:            "Run and administer a kaitiaki server",
		Long:             `Runs the HTTP API and provides the administrator tasks around it: key generation, token issuing and the audit log.`,
		PersistentPreRun: setupLogger,
	}
)

func init() {
	addLoggingFlags(ServerCmd)
	ServerCmd.PersistentFlags().StringVarP(&serverConfigPath, "config", "c", "", "server config file (default ./kaitiaki.yaml)")
}

// GetServerCmd returns the ServerCmd for testing.
func GetServerCmd() *cobra.Command {
	return ServerCmd
}

// ResetServerState resets server command flags for testing.
func ResetServerState() {
	serverConfigPath = ""
	resetServerKeygenState()
	resetServerTokenState()
	resetServerLogState()
}
