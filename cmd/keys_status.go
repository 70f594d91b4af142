package cmd

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PolarWolf314/kaitiaki/internal/ui"
	"github.com/PolarWolf314/kaitiaki/internal/workflows"

	"github.com/spf13/cobra"
)

func init() {
	KeysCmd.AddCommand(keysStatusCmd)
}

var keysStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the local key material and whether the server holds the same key",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting keys status command")

		opts, err := custodyOptions(nil)
		if err != nil {
			if msg, ok := formatError(err); ok {
				fmt.Println(msg)
				return nil
			}
			return Logger.ErrorfAndReturn("failed to open local key material: %v", err)
		}

		spinner, cleanup := startSpinner("Checking keys...", verbose)
		defer cleanup()

		result, err := workflows.KeysStatus(context.Background(), opts)
		if err != nil {
			Logger.Errorf("Failed to check keys: %v", err)
			if msg, ok := formatError(err); ok {
				spinner.FinalMSG = msg
				return nil
			}
			spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to check keys\n" +
				ui.Error.Sprint("Error: ") + err.Error()
			return nil
		}

		var b bytes.Buffer
		fmt.Fprintf(&b, "%-13s %s\n", "State:", result.State)
		if result.Fingerprint != "" {
			fmt.Fprintf(&b, "%-13s %s\n", "Algorithm:", result.Algorithm)
			fmt.Fprintf(&b, "%-13s %s\n", "Fingerprint:", result.Fingerprint)
			fmt.Fprintf(&b, "%-13s %s\n", "Device:", result.Device)
			fmt.Fprintf(&b, "%-13s %s\n", "Synced:", result.SyncedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(&b, "%-13s %t\n", "Sealed:", result.Sealed)
		}

		switch {
		case !result.ServerChecked:
			b.WriteString(ui.Info.Sprint("→") + " No server configured, server registration not checked")
		case !result.ServerHasKey:
			b.WriteString(ui.Error.Sprint("✗") + " The server has no key registered for you\n" +
				ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("kaitiaki keys generate"))
		case result.Fingerprint == "":
			b.WriteString(ui.Warning.Sprint("⚠") + " The server has a key for you but this machine does not")
		case result.InSync:
			b.WriteString(ui.Success.Sprint("✓") + " The server holds the same key")
		default:
			b.WriteString(ui.Error.Sprint("✗") + " The server holds a different key, probably registered from another device\n" +
				ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("kaitiaki keys generate --force") + " to register this one")
		}
		if result.ServerKeyChanged {
			b.WriteString("\n" + ui.Warning.Sprint("⚠") + " The server's key has changed since your key was registered")
		}

		spinner.FinalMSG = b.String()
		return nil
	},
}
