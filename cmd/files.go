package cmd

import (
	"github.com/spf13/cobra"
)

var FilesCmd = &cobra.Command{
	Use:              "files",
	Short:            "Upload, list, download and verify encrypted files",
	Long:             `Encrypts files locally before upload and fetches them back from the kaitiaki server.`,
	PersistentPreRun: setupLogger,
}

func init() {
	addLoggingFlags(FilesCmd)
}

// GetFilesCmd returns the FilesCmd for testing.
func GetFilesCmd() *cobra.Command {
	return FilesCmd
}

// ResetFilesState resets files command flags for testing.
func ResetFilesState() {
	resetFilesUploadState()
	resetFilesListState()
	resetFilesDownloadState()
}
