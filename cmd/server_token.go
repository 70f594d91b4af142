package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/ui"
	"github.com/PolarWolf314/kaitiaki/internal/workflows"

	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

func init() {
	serverTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "how long the token is valid for")
	ServerCmd.AddCommand(serverTokenCmd)
}

func resetServerTokenState() {
	tokenTTL = 24 * time.Hour
}

var serverTokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting server token command")

		result, err := workflows.ServerToken(context.Background(), workflows.ServerTokenOptions{
			ConfigPath: serverConfigPath,
			UserID:     args[0],
			TTL:        tokenTTL,
		})
		if err != nil {
			if errors.Is(err, kerrors.ErrInvalidRequest) {
				fmt.Println(ui.Error.Sprint("✗") + " " + err.Error())
				return nil
			}
			return Logger.ErrorfAndReturn("failed to issue token: %v", err)
		}

		Logger.Infof("Issued token for %s, expires %s", result.UserID, result.ExpiresAt.Format(time.RFC3339))
		// The token alone goes to stdout so it can be piped into "config set-token --stdin".
		fmt.Println(result.Token)
		return nil
	},
}
