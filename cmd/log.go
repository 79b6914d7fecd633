package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PolarWolf314/veil/internal/audit"
	kerrors "github.com/PolarWolf314/veil/internal/errors"
	"github.com/PolarWolf314/veil/internal/ui"
	"github.com/PolarWolf314/veil/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	logLimit     int
	logReverse   bool
	logOperation string
	logSince     string
	logUntil     string
	logFailed    bool
	logJSON      bool
)

func init() {
	logCmd.Flags().IntVarP(&logLimit, "number", "n", 0, "limit number of entries shown")
	logCmd.Flags().BoolVar(&logReverse, "reverse", false, "show most recent entries first")
	logCmd.Flags().StringVar(&logOperation, "operation", "", "filter by operation type (comma-separated)")
	logCmd.Flags().StringVar(&logSince, "since", "", "show entries after date (YYYY-MM-DD)")
	logCmd.Flags().StringVar(&logUntil, "until", "", "show entries before date (YYYY-MM-DD)")
	logCmd.Flags().BoolVar(&logFailed, "failed", false, "show only failed operations")
	logCmd.Flags().BoolVar(&logJSON, "json", false, "output as JSON array")
}

// resetLogCommandState resets the log command's global state for testing.
func resetLogCommandState() {
	logLimit = 0
	logReverse = false
	logOperation = ""
	logSince = ""
	logUntil = ""
	logFailed = false
	logJSON = false
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the audit log",
	Long: `Displays the local audit log of pushes, pulls and key syncs.

Examples:
  veil log                       # View full log
  veil log -n 10                 # Last 10 entries
  veil log --operation push      # Filter by operation
  veil log --since 2024-01-01    # Filter by date
  veil log --failed --json       # Failed runs as JSON`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting log command")

	result, err := workflows.Log(cmd.Context(), workflows.LogOptions{
		Limit:      logLimit,
		Reverse:    logReverse,
		Operations: logOperation,
		Since:      logSince,
		Until:      logUntil,
		FailedOnly: logFailed,
	})
	switch {
	case errors.Is(err, kerrors.ErrNoAuditLog):
		fmt.Println(ui.Info.Sprint("ℹ") + " No audit log found. Pushes, pulls and key syncs are logged at " + ui.Path.Sprint(audit.LogPath()))
		return nil
	case err != nil:
		return reportedError{Logger.ErrorfAndReturn("failed to read audit log: %v", err)}
	}

	Logger.Debugf("Parsed %d entries from audit log, %d after filtering", result.TotalEntriesBeforeFilter, len(result.Entries))

	if logJSON {
		data, err := json.MarshalIndent(result.Entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal entries to JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(result.Entries) == 0 {
		fmt.Println("No audit log entries found matching the filters.")
		return nil
	}
	for _, e := range result.Entries {
		datetime := workflows.FormatDateTime(e.Timestamp)
		fmt.Printf("%-19s  %-16s  %-9s  %s\n", datetime, e.User, e.Operation, workflows.FormatDetails(e))
	}
	return nil
}
