package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PolarWolf314/kaitiaki/internal/audit"
	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/ui"
	"github.com/PolarWolf314/kaitiaki/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	logLimit        int
	logReverse      bool
	logUser         string
	logOperation    string
	logSince        string
	logUntil        string
	logFailuresOnly bool
	logJSON         bool
	logOneline      bool
	logFile         string
)

func init() {
	serverLogCmd.Flags().IntVarP(&logLimit, "number", "n", 0, "limit number of entries shown")
	serverLogCmd.Flags().BoolVar(&logReverse, "reverse", false, "show most recent first")
	serverLogCmd.Flags().StringVar(&logUser, "user", "", "filter by user ID")
	serverLogCmd.Flags().StringVar(&logOperation, "operation", "", "filter by operation (comma-separated)")
	serverLogCmd.Flags().StringVar(&logSince, "since", "", "show entries after date (YYYY-MM-DD)")
	serverLogCmd.Flags().StringVar(&logUntil, "until", "", "show entries before date (YYYY-MM-DD)")
	serverLogCmd.Flags().BoolVar(&logFailuresOnly, "failures", false, "show failed operations only")
	serverLogCmd.Flags().BoolVar(&logJSON, "json", false, "output as JSON")
	serverLogCmd.Flags().BoolVar(&logOneline, "oneline", false, "compact one-line format")
	serverLogCmd.Flags().StringVar(&logFile, "file", "", "read this audit log instead of the configured one")
	ServerCmd.AddCommand(serverLogCmd)
}

// resetServerLogState resets the log command's global state for testing.
func resetServerLogState() {
	logLimit = 0
	logReverse = false
	logUser = ""
	logOperation = ""
	logSince = ""
	logUntil = ""
	logFailuresOnly = false
	logJSON = false
	logOneline = false
	logFile = ""
}

var serverLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting server log command")

		result, err := workflows.ServerLog(context.Background(), workflows.ServerLogOptions{
			ConfigPath:   serverConfigPath,
			File:         logFile,
			Limit:        logLimit,
			Reverse:      logReverse,
			User:         logUser,
			Operations:   logOperation,
			Since:        logSince,
			Until:        logUntil,
			FailuresOnly: logFailuresOnly,
		})
		if err != nil {
			fmt.Println(formatLogError(err))
			if isLogUnexpectedError(err) {
				return err
			}
			return nil
		}

		if logJSON {
			return outputLogJSON(result.Entries)
		}

		if len(result.Entries) == 0 {
			if result.TotalEntriesBeforeFilter > 0 {
				fmt.Println(ui.Info.Sprint("ℹ") + " No entries match the given filters")
			} else {
				fmt.Println(ui.Info.Sprint("ℹ") + " The audit log is empty")
			}
			return nil
		}

		if logOneline {
			outputLogOneline(result.Entries)
			return nil
		}
		outputLogDefault(result.Entries)
		return nil
	},
}

func formatLogError(err error) string {
	switch {
	case errors.Is(err, kerrors.ErrNoFilesFound):
		return ui.Info.Sprint("ℹ") + " No audit log found. Operations are logged once the server handles requests."
	case errors.Is(err, kerrors.ErrInvalidRequest):
		return ui.Error.Sprint("✗") + " " + err.Error()
	default:
		return ui.Error.Sprint("✗") + " Failed to read audit log: " + err.Error()
	}
}

// isLogUnexpectedError returns true if the error should cause a non-zero exit.
func isLogUnexpectedError(err error) bool {
	return !errors.Is(err, kerrors.ErrNoFilesFound) && !errors.Is(err, kerrors.ErrInvalidRequest)
}

func outputLogJSON(entries []audit.Entry) error {
	if entries == nil {
		entries = []audit.Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entries to JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func outputLogOneline(entries []audit.Entry) {
	for _, e := range entries {
		date := workflows.FormatDateTime(e)
		if len(date) > 10 {
			date = date[:10]
		}
		fmt.Printf("%s %s %s %s\n", date, e.User, e.Operation, e.Outcome)
	}
}

func outputLogDefault(entries []audit.Entry) {
	for _, e := range entries {
		outcome := ui.Success.Sprint(e.Outcome)
		if e.Outcome != audit.OutcomeOK {
			outcome = ui.Error.Sprint(e.Outcome)
		}
		fmt.Printf("%-19s  %-20s  %-13s  %-22s  %s\n",
			workflows.FormatDateTime(e), e.User, e.Operation, outcome, workflows.FormatDetails(e))
	}
}
