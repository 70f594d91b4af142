package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PolarWolf314/kaitiaki/internal/api"
	"github.com/PolarWolf314/kaitiaki/internal/ui"
	"github.com/PolarWolf314/kaitiaki/internal/utils"
	"github.com/PolarWolf314/kaitiaki/internal/workflows"

	"github.com/spf13/cobra"
)

var filesJSON bool

func init() {
	filesListCmd.Flags().BoolVar(&filesJSON, "json", false, "output as JSON")
	FilesCmd.AddCommand(filesListCmd)
}

func resetFilesListState() {
	filesJSON = false
}

var filesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your uploaded files",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting files list command")

		files, err := workflows.FilesList(context.Background())
		if err != nil {
			Logger.Errorf("Failed to list files: %v", err)
			if msg, ok := formatError(err); ok {
				fmt.Println(msg)
				return nil
			}
			fmt.Println(ui.Error.Sprint("✗") + " Failed to list files\n" + ui.Error.Sprint("Error: ") + err.Error())
			return nil
		}

		if filesJSON {
			return outputFilesJSON(files)
		}

		if len(files) == 0 {
			fmt.Println(ui.Info.Sprint("ℹ") + " No files uploaded yet")
			return nil
		}

		for _, f := range files {
			signed := ""
			if f.Signed {
				signed = f.Algorithm
			}
			fmt.Printf("%-36s  %-19s  %9s  %-3s  %s\n",
				f.ID,
				f.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				utils.FormatSize(f.Size),
				signed,
				f.Name)
		}
		return nil
	},
}

func outputFilesJSON(files []api.File) error {
	if files == nil {
		files = []api.File{}
	}
	data, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal files to JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
