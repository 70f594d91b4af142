package cmd

import (
	"context"
	"errors"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/ui"
	"github.com/PolarWolf314/kaitiaki/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	keygenBits  int
	keygenOut   string
	keygenForce bool
)

func init() {
	serverKeygenCmd.Flags().IntVar(&keygenBits, "bits", 2048, "RSA key size, 2048 or 4096")
	serverKeygenCmd.Flags().StringVar(&keygenOut, "out", ".", "directory to write the key pair to")
	serverKeygenCmd.Flags().BoolVarP(&keygenForce, "force", "f", false, "overwrite an existing key pair")
	ServerCmd.AddCommand(serverKeygenCmd)
}

func resetServerKeygenState() {
	keygenBits = 2048
	keygenOut = "."
	keygenForce = false
}

var serverKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the server's key-transport key pair",
	Long: `Writes server_private.pem and server_public.pem. Clients wrap their file keys for this key.

Replacing the key pair means every client must run "kaitiaki keys generate --force".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting server keygen command")
		spinner, cleanup := startSpinner("Generating server key pair...", verbose)
		defer cleanup()

		result, err := workflows.ServerKeygen(context.Background(), workflows.ServerKeygenOptions{
			Bits:   keygenBits,
			OutDir: keygenOut,
			Force:  keygenForce,
		})
		if err != nil {
			Logger.Errorf("Failed to generate server key pair: %v", err)
			switch {
			case errors.Is(err, kerrors.ErrKeyExists):
				spinner.FinalMSG = ui.Error.Sprint("✗") + " A server key pair already exists in " + ui.Path.Sprint(keygenOut) + "\n" +
					ui.Info.Sprint("→") + " Use " + ui.Flag.Sprint("--force") + " to replace it"
			case errors.Is(err, kerrors.ErrInvalidRequest):
				spinner.FinalMSG = ui.Error.Sprint("✗") + " " + err.Error()
			default:
				spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to generate server key pair\n" +
					ui.Error.Sprint("Error: ") + err.Error()
			}
			return nil
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Server key pair written\n" +
			"    Private key: " + ui.Path.Sprint(result.PrivateKeyPath) + "\n" +
			"    Public key:  " + ui.Path.Sprint(result.PublicKeyPath) + "\n" +
			"    Fingerprint: " + result.Fingerprint + "\n" +
			ui.Info.Sprint("→") + " Keep the private key readable by the server only"
		return nil
	},
}
