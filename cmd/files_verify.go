package cmd

import (
	"context"
	"errors"
	"fmt"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/ui"
	"github.com/PolarWolf314/kaitiaki/internal/workflows"

	"github.com/spf13/cobra"
)

func init() {
	FilesCmd.AddCommand(filesVerifyCmd)
}

var filesVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Ask the server to verify your signature over a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting files verify command")

		opts, err := custodyOptions(nil)
		if err != nil {
			if msg, ok := formatError(err); ok {
				fmt.Println(msg)
				return nil
			}
			return Logger.ErrorfAndReturn("failed to open local key material: %v", err)
		}

		spinner, cleanup := startSpinner("Verifying signature...", verbose)
		defer cleanup()

		result, err := workflows.FilesVerify(context.Background(), workflows.FilesVerifyOptions{
			CustodyOptions: opts,
			Path:           args[0],
		})
		if err != nil {
			Logger.Errorf("Verify failed: %v", err)
			if msg, ok := formatError(err); ok {
				spinner.FinalMSG = msg
				return nil
			}
			if errors.Is(err, kerrors.ErrFileNotFound) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " " + ui.Path.Sprint(args[0]) + " does not exist"
				return nil
			}
			spinner.FinalMSG = ui.Error.Sprint("✗") + " Verification failed\n" + ui.Error.Sprint("Error: ") + err.Error()
			return nil
		}

		spinner.FinalMSG = ui.Verdict(result.Valid) + " for " + ui.Path.Sprint(result.Path) + " " + ui.Muted.Sprint(result.Algorithm)
		return nil
	},
}
