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

var configFromStdin bool

func init() {
	configSetTokenCmd.Flags().BoolVar(&configFromStdin, "stdin", false, "read the token from stdin")
	ConfigCmd.AddCommand(configSetTokenCmd)
}

func resetConfigSetTokenState() {
	configFromStdin = false
}

var configSetTokenCmd = &cobra.Command{
	Use:   "set-token [token]",
	Short: "Store the bearer token issued by your server administrator",
	Long: `Stores the bearer token used to authenticate with the server.

The token can be passed as an argument, piped with --stdin, or typed at a hidden prompt.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting config set-token command")

		token, err := readToken(args)
		if err != nil {
			fmt.Println(ui.Error.Sprint("✗") + " " + err.Error())
			return nil
		}

		if err := workflows.ConfigSetToken(context.Background(), workflows.ConfigSetTokenOptions{Token: token}); err != nil {
			if errors.Is(err, kerrors.ErrInvalidRequest) {
				fmt.Println(ui.Error.Sprint("✗") + " The token is empty")
				return nil
			}
			return Logger.ErrorfAndReturn("failed to save token: %v", err)
		}

		fmt.Println(ui.Success.Sprint("✓") + " Token saved")
		return nil
	},
}

func readToken(args []string) (string, error) {
	switch {
	case len(args) == 1:
		Logger.Debugf("Reading token from argument")
		return args[0], nil
	case configFromStdin:
		Logger.Debugf("Reading token from stdin")
		data, err := utils.ReadStdin()
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		Logger.Debugf("Prompting for token")
		data, err := utils.ReadPassphrase("Token: ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
