package cmd

import (
	"context"
	"errors"
	"fmt"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/ui"
	"github.com/PolarWolf314/kaitiaki/internal/utils"
	"github.com/PolarWolf314/kaitiaki/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	filesSign        bool
	filesContentType string
	filesDryRun      bool
)

func init() {
	filesUploadCmd.Flags().BoolVarP(&filesSign, "sign", "s", false, "sign each file with your key")
	filesUploadCmd.Flags().StringVar(&filesContentType, "content-type", "", "content type to record instead of detecting it")
	filesUploadCmd.Flags().BoolVar(&filesDryRun, "dry-run", false, "list the files that would be uploaded")
	FilesCmd.AddCommand(filesUploadCmd)
}

func resetFilesUploadState() {
	filesSign = false
	filesContentType = ""
	filesDryRun = false
}

var filesUploadCmd = &cobra.Command{
	Use:   "upload <path|glob>...",
	Short: "Encrypt and upload files",
	Long: `Encrypts each matching file with your file key and uploads it.

Patterns may be files, directories or globs such as "reports/**/*.pdf".
Hidden files inside directories are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting files upload command")

		var opts workflows.CustodyOptions
		if !filesDryRun {
			var err error
			if opts, err = custodyOptions(nil); err != nil {
				if msg, ok := formatError(err); ok {
					fmt.Println(msg)
					return nil
				}
				return Logger.ErrorfAndReturn("failed to open local key material: %v", err)
			}
		}

		spinner, cleanup := startSpinner("Uploading files...", verbose)
		defer cleanup()

		result, err := workflows.FilesUpload(context.Background(), workflows.FilesUploadOptions{
			CustodyOptions: opts,
			Patterns:       args,
			Sign:           filesSign,
			ContentType:    filesContentType,
			DryRun:         filesDryRun,
		})
		if err != nil {
			Logger.Errorf("Upload failed: %v", err)
			spinner.FinalMSG = formatUploadError(err, result)
			return nil
		}

		if result.DryRun {
			spinner.FinalMSG = ui.Info.Sprint("→") + " Would upload " + fmt.Sprint(len(result.SourceFiles)) + " file(s):" +
				utils.FormatPaths(result.SourceFiles)
			return nil
		}

		finalMessage := ui.Success.Sprint("✓") + " Uploaded " + fmt.Sprint(len(result.Uploaded)) + " file(s)\n"
		for _, f := range result.Uploaded {
			finalMessage += "    " + f.ID + "  " + ui.Highlight.Sprint(f.Name) + " " + ui.Muted.Sprint(utils.FormatSize(f.Size))
			if f.Signed {
				finalMessage += " signed " + f.Algorithm
			}
			finalMessage += "\n"
		}
		spinner.FinalMSG = finalMessage
		return nil
	},
}

func formatUploadError(err error, result *workflows.FilesUploadResult) string {
	if msg, ok := formatError(err); ok {
		return msg
	}

	var msg string
	switch {
	case errors.Is(err, kerrors.ErrNoFilesFound):
		return ui.Error.Sprint("✗") + " No files matched\n" +
			ui.Error.Sprint("Error: ") + err.Error()
	case errors.Is(err, kerrors.ErrDigestMismatch),
		errors.Is(err, kerrors.ErrDecryptFailed),
		errors.Is(err, kerrors.ErrMalformedEnvelope):
		msg = ui.Error.Sprint("✗") + " The server could not confirm the uploaded content\n"
	case errors.Is(err, kerrors.ErrSignatureInvalid):
		msg = ui.Error.Sprint("✗") + " The server rejected the signature\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("kaitiaki keys status") + " to check your key is registered\n"
	default:
		msg = ui.Error.Sprint("✗") + " Upload failed\n"
	}
	msg += ui.Error.Sprint("Error: ") + err.Error()

	if result != nil && len(result.Uploaded) > 0 {
		msg += "\n" + ui.Info.Sprint("→") + " " + fmt.Sprint(len(result.Uploaded)) + " file(s) were uploaded before the failure"
	}
	return msg
}
