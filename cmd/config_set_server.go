package cmd

import (
	"context"
	"errors"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/ui"
	"github.com/PolarWolf314/kaitiaki/internal/workflows"

	"github.com/spf13/cobra"
)

var configSkipCheck bool

func init() {
	configSetServerCmd.Flags().BoolVar(&configSkipCheck, "skip-check", false, "save the URL without checking the server is reachable")
	ConfigCmd.AddCommand(configSetServerCmd)
}

func resetConfigSetServerState() {
	configSkipCheck = false
}

var configSetServerCmd = &cobra.Command{
	Use:   "set-server <url>",
	Short: "Set the kaitiaki server URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting config set-server command")
		spinner, cleanup := startSpinner("Checking server...", verbose)
		defer cleanup()

		result, err := workflows.ConfigSetServer(context.Background(), workflows.ConfigSetServerOptions{
			URL:       args[0],
			SkipCheck: configSkipCheck,
		})
		if err != nil {
			Logger.Errorf("Failed to set server: %v", err)
			if errors.Is(err, kerrors.ErrInvalidRequest) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " " + ui.Highlight.Sprint(args[0]) + " is not a valid server URL\n" +
					ui.Info.Sprint("→") + " Use an absolute " + ui.Code.Sprint("http://") + " or " + ui.Code.Sprint("https://") + " URL"
				return nil
			}
			spinner.FinalMSG = ui.Error.Sprint("✗") + " Could not reach the server\n" +
				ui.Error.Sprint("Error: ") + err.Error() + "\n" +
				ui.Info.Sprint("→") + " Use " + ui.Flag.Sprint("--skip-check") + " to save it anyway"
			return nil
		}

		finalMessage := ui.Success.Sprint("✓") + " Server set to " + ui.Path.Sprint(result.ServerURL)
		if result.PreviousURL != "" && result.PreviousURL != result.ServerURL {
			finalMessage += " " + ui.Muted.Sprint("was "+result.PreviousURL)
		}
		if !result.Reachable {
			finalMessage += "\n" + ui.Warning.Sprint("⚠") + " Reachability was not checked"
		}
		spinner.FinalMSG = finalMessage
		return nil
	},
}
