package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/secrets"
	"github.com/PolarWolf314/kaitiaki/internal/ui"
	"github.com/PolarWolf314/kaitiaki/internal/utils"
	"github.com/PolarWolf314/kaitiaki/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	keysAlgorithm secrets.Algorithm
	keysForce     bool
	keysYes       bool
	keysSeal      bool
)

func init() {
	keysGenerateCmd.Flags().Var(&keysAlgorithm, "algorithm", "signing algorithm, RSA or ECC (default from config)")
	keysGenerateCmd.Flags().BoolVarP(&keysForce, "force", "f", false, "replace existing key material")
	keysGenerateCmd.Flags().BoolVarP(&keysYes, "yes", "y", false, "do not ask before replacing key material")
	keysGenerateCmd.Flags().BoolVar(&keysSeal, "seal", false, "seal the local key material with a passphrase")
	KeysCmd.AddCommand(keysGenerateCmd)
}

func resetKeysGenerateState() {
	keysAlgorithm = ""
	keysForce = false
	keysYes = false
	keysSeal = false
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and register new key material",
	Long: `Generates a signing key pair and a file encryption key, registers them with the server
and only then saves them on this machine. If the server does not accept the key,
nothing is saved.

Replacing existing material with --force makes files uploaded under the old key
unreadable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting keys generate command")

		if keysForce && !keysYes && utils.IsTerminal() {
			fmt.Println(ui.Warning.Sprint("⚠") + " Replacing your keys makes files uploaded under the old key unreadable")
			if !utils.Confirm("Continue?") {
				fmt.Println(ui.Error.Sprint("✗") + " Aborted")
				return nil
			}
		}

		opts := workflows.KeysGenerateOptions{
			Algorithm: keysAlgorithm,
			Force:     keysForce,
		}
		if keysSeal {
			passphrase, err := readNewPassphrase()
			if err != nil {
				fmt.Println(ui.Error.Sprint("✗") + " " + err.Error())
				return nil
			}
			opts.Passphrase = passphrase
		}

		spinner, cleanup := startSpinner("Generating and registering keys...", verbose)
		defer cleanup()

		result, err := workflows.KeysGenerate(context.Background(), opts)
		if err != nil {
			Logger.Errorf("Failed to generate keys: %v", err)
			if msg, ok := formatError(err); ok {
				spinner.FinalMSG = msg
				return nil
			}
			if errors.Is(err, kerrors.ErrKeyExists) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " Key material already exists on this machine\n" +
					ui.Info.Sprint("→") + " Use " + ui.Flag.Sprint("--force") + " to replace it"
				return nil
			}
			spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to generate keys\n" +
				ui.Error.Sprint("Error: ") + err.Error()
			return nil
		}

		finalMessage := ui.Success.Sprint("✓") + " Keys generated and registered\n" +
			"    Algorithm:   " + ui.Highlight.Sprint(result.Algorithm) + "\n" +
			"    Fingerprint: " + result.Fingerprint
		if result.Sealed {
			finalMessage += "\n" + ui.Info.Sprint("→") + " Local key material is sealed with your passphrase"
		}
		if result.ReplacedExisting {
			finalMessage += "\n" + ui.Warning.Sprint("⚠") + " Replaced previous key"
			if result.PreviousFingerprint != "" {
				finalMessage += " " + ui.Muted.Sprint(utils.ShortID(result.PreviousFingerprint))
			}
		}
		spinner.FinalMSG = finalMessage
		return nil
	},
}

func readNewPassphrase() ([]byte, error) {
	passphrase, err := utils.ReadPassphrase("New passphrase: ")
	if err != nil {
		return nil, err
	}
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("passphrase is empty")
	}
	confirm, err := utils.ReadPassphrase("Confirm passphrase: ")
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(passphrase, confirm) {
		return nil, fmt.Errorf("passphrases do not match")
	}
	return passphrase, nil
}
