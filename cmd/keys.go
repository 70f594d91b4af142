package cmd

import (
	"github.com/spf13/cobra"
)

var KeysCmd = &cobra.Command{
	Use:              "keys",
	Short:            "Manage the key material on this machine",
	Long:             `Generates your signing key pair and file encryption key, registers them with the server and reports their status.`,
	PersistentPreRun: setupLogger,
}

func init() {
	addLoggingFlags(KeysCmd)
}

// GetKeysCmd returns the KeysCmd for testing.
func GetKeysCmd() *cobra.Command {
	return KeysCmd
}

// ResetKeysState resets keys command flags for testing.
func ResetKeysState() {
	resetKeysGenerateState()
}
