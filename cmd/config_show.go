package cmd

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/kaitiaki/internal/ui"
	"github.com/PolarWolf314/kaitiaki/internal/workflows"

	"github.com/spf13/cobra"
)

func init() {
	ConfigCmd.AddCommand(configShowCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the client configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting config show command")

		result, err := workflows.ConfigShow(context.Background())
		if err != nil {
			return Logger.ErrorfAndReturn("failed to load config: %v", err)
		}

		notSet := ui.Muted.Sprint("not set")
		serverURL, token := notSet, notSet
		if result.ServerURL != "" {
			serverURL = result.ServerURL
		}
		if result.MaskedToken != "" {
			token = result.MaskedToken
		}

		fmt.Printf("%-12s %s\n", "Config:", ui.Path.Sprint(result.ConfigPath))
		fmt.Printf("%-12s %s\n", "Custody:", ui.Path.Sprint(result.CustodyPath))
		fmt.Printf("%-12s %s\n", "Server:", serverURL)
		fmt.Printf("%-12s %s\n", "Token:", token)
		fmt.Printf("%-12s %s\n", "Algorithm:", result.DefaultAlgorithm)
		return nil
	},
}
