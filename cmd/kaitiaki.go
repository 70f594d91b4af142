package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	logger "github.com/PolarWolf314/kaitiaki/internal/logging"
	"github.com/PolarWolf314/kaitiaki/internal/ui"
	"github.com/PolarWolf314/kaitiaki/internal/utils"
	"github.com/PolarWolf314/kaitiaki/internal/workflows"

	"github.com/briandowns/spinner"
	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	debug   bool
	Logger  logger.Logger
)

// setupLogger is shared by every command group as its PersistentPreRun.
func setupLogger(cmd *cobra.Command, args []string) {
	Logger = logger.Logger{
		Verbose: verbose,
		Debug:   debug,
	}
	Logger.Debugf("Initializing %s command with verbose=%t, debug=%t", cmd.CommandPath(), verbose, debug)
}

func addLoggingFlags(c *cobra.Command) {
	c.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	c.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
}

// PrintBanner prints the kaitiaki banner.
func PrintBanner() {
	figure.NewColorFigure("Kaitiaki", "alligator2", "green", true).Print()
	fmt.Println()
}

// startSpinner creates and starts a spinner with the given message when not in verbose or debug mode.
// Returns the spinner and a function that should be deferred to clean up.
//
// spinner.FinalMSG values do not need trailing newlines; cleanup adds one.
func startSpinner(message string, verbose bool) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message

	if err := s.Color("cyan"); err != nil {
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	quiet := !verbose && !debug
	if quiet {
		s.Start()
		log.SetOutput(io.Discard)
	} else {
		Logger.Infof("Running in verbose or debug mode: %s", message)
	}

	cleanup := func() {
		if quiet {
			log.SetOutput(os.Stdout)
		}

		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			s.FinalMSG = ""
		}

		if quiet {
			s.Stop()
		}

		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}

	return s, cleanup
}

// custodyOptions asks for the custody passphrase when the local material is sealed.
// The spinner is paused while prompting.
func custodyOptions(s *spinner.Spinner) (workflows.CustodyOptions, error) {
	sealed, err := workflows.CustodySealed()
	if err != nil || !sealed {
		return workflows.CustodyOptions{}, err
	}

	Logger.Debugf("Custody store is sealed, prompting for passphrase")
	if s != nil {
		s.Stop()
		defer s.Start()
	}
	passphrase, err := utils.ReadPassphrase("Passphrase for local key material: ")
	if err != nil {
		return workflows.CustodyOptions{}, fmt.Errorf("%w: %v", kerrors.ErrCustodySealed, err)
	}
	return workflows.CustodyOptions{Passphrase: passphrase}, nil
}

// formatError renders the failures every client command can run into.
// ok is false when the error is not one of them.
func formatError(err error) (string, bool) {
	switch {
	case errors.Is(err, kerrors.ErrNotConfigured):
		return ui.Error.Sprint("✗") + " kaitiaki is not configured\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("kaitiaki config set-server <url>") + " and " +
			ui.Code.Sprint("kaitiaki config set-token") + " first", true

	case errors.Is(err, kerrors.ErrNoLocalKey):
		return ui.Error.Sprint("✗") + " No key material on this machine\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("kaitiaki keys generate") + " first", true

	case errors.Is(err, kerrors.ErrNoKey):
		return ui.Error.Sprint("✗") + " The server has no key registered for you\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("kaitiaki keys generate --force") + " to register a new one", true

	case errors.Is(err, kerrors.ErrCustodySealed):
		return ui.Error.Sprint("✗") + " Local key material is sealed and could not be opened\n" +
			ui.Error.Sprint("Error: ") + err.Error(), true

	case errors.Is(err, kerrors.ErrUnauthorized):
		return ui.Error.Sprint("✗") + " The server rejected your token\n" +
			ui.Info.Sprint("→") + " Ask an administrator for a new one and run " + ui.Code.Sprint("kaitiaki config set-token"), true

	case errors.Is(err, kerrors.ErrRegistryUnavailable):
		return ui.Error.Sprint("✗") + " Could not reach the kaitiaki server\n" +
			ui.Error.Sprint("Error: ") + err.Error(), true

	case errors.Is(err, kerrors.ErrKeyTransport):
		return ui.Error.Sprint("✗") + " The server could not unwrap your key. The server key may have changed\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("kaitiaki keys status") + " to compare keys", true
	}
	return "", false
}
