package cmd

import (
	"context"
	"errors"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/ui"
	"github.com/PolarWolf314/kaitiaki/internal/utils"
	"github.com/PolarWolf314/kaitiaki/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	filesOutput  string
	filesExtract string
	filesForce   bool
)

func init() {
	filesDownloadCmd.Flags().StringVarP(&filesOutput, "output", "o", "", "path of the zip to write (default: name suggested by the server)")
	filesDownloadCmd.Flags().StringVar(&filesExtract, "extract", "", "extract the bundle into this directory and check its signature")
	filesDownloadCmd.Flags().BoolVarP(&filesForce, "force", "f", false, "overwrite existing files")
	FilesCmd.AddCommand(filesDownloadCmd)
}

func resetFilesDownloadState() {
	filesOutput = ""
	filesExtract = ""
	filesForce = false
}

var filesDownloadCmd = &cobra.Command{
	Use:   "download <file-id>",
	Short: "Download a file as a zip bundle",
	Long: `Downloads a file as a zip bundle. Signed files include a signature sidecar.

With --extract the bundle is unpacked and the sidecar is checked on this machine.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting files download command")
		spinner, cleanup := startSpinner("Downloading file...", verbose)
		defer cleanup()

		result, err := workflows.FilesDownload(context.Background(), workflows.FilesDownloadOptions{
			ID:         args[0],
			Output:     filesOutput,
			ExtractDir: filesExtract,
			Force:      filesForce,
		})
		if err != nil {
			Logger.Errorf("Download failed: %v", err)
			if msg, ok := formatError(err); ok {
				spinner.FinalMSG = msg
				return nil
			}
			switch {
			case errors.Is(err, kerrors.ErrFileNotFound):
				spinner.FinalMSG = ui.Error.Sprint("✗") + " File " + ui.Highlight.Sprint(args[0]) + " not found\n" +
					ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("kaitiaki files list") + " to see your files"
			case errors.Is(err, kerrors.ErrInvalidRequest):
				spinner.FinalMSG = ui.Error.Sprint("✗") + " " + err.Error()
			default:
				spinner.FinalMSG = ui.Error.Sprint("✗") + " Download failed\n" + ui.Error.Sprint("Error: ") + err.Error()
			}
			return nil
		}

		if result.ArchivePath != "" {
			spinner.FinalMSG = ui.Success.Sprint("✓") + " Saved " + ui.Highlight.Sprint(result.File.Name) + " to " + ui.Path.Sprint(result.ArchivePath)
			return nil
		}

		finalMessage := ui.Success.Sprint("✓") + " Extracted " + ui.Highlight.Sprint(result.File.Name) + ":" +
			utils.FormatPaths(result.Extracted)
		if result.SignatureChecked {
			finalMessage += ui.Verdict(result.SignatureValid)
		} else {
			finalMessage += ui.Muted.Sprint("not signed")
		}
		spinner.FinalMSG = finalMessage
		return nil
	},
}
