package cmd

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/kaitiaki/internal/secrets"
	"github.com/PolarWolf314/kaitiaki/internal/ui"
	"github.com/PolarWolf314/kaitiaki/internal/workflows"

	"github.com/spf13/cobra"
)

func init() {
	ConfigCmd.AddCommand(configSetAlgorithmCmd)
}

var configSetAlgorithmCmd = &cobra.Command{
	Use:       "set-algorithm <RSA|ECC>",
	Short:     "Set the default signing algorithm for new keys",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(secrets.RSA), string(secrets.ECC)},
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting config set-algorithm command")

		alg, err := secrets.ParseAlgorithm(args[0])
		if err != nil || args[0] == "" {
			fmt.Println(ui.Error.Sprint("✗") + " Unsupported algorithm " + ui.Highlight.Sprint(args[0]) + "\n" +
				ui.Info.Sprint("→") + " Use " + ui.Code.Sprint("RSA") + " or " + ui.Code.Sprint("ECC"))
			return nil
		}

		if err := workflows.ConfigSetAlgorithm(context.Background(), alg); err != nil {
			return Logger.ErrorfAndReturn("failed to save algorithm: %v", err)
		}

		fmt.Println(ui.Success.Sprint("✓") + " Default algorithm set to " + ui.Highlight.Sprint(alg))
		return nil
	},
}
