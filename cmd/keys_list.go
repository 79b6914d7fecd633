package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/PolarWolf314/veil/internal/ui"
	"github.com/PolarWolf314/veil/internal/workflows"
	"github.com/spf13/cobra"
)

var keysListJSON bool

func init() {
	keysListCmd.Flags().BoolVar(&keysListJSON, "json", false, "output as JSON array")
}

func resetKeysListState() {
	keysListJSON = false
}

var keysListCmd = &cobra.Command{
	Use:   "list <encrypted-repo>",
	Short: "List the fingerprints in the keychain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting keys list command")

		result, err := workflows.ListKeys(cmd.Context(), workflows.KeysOptions{
			Repo: args[0],
			Log:  Logger,
		})
		if err != nil {
			return reportedError{Logger.ErrorfAndReturn("failed to list keys: %v", err)}
		}

		if keysListJSON {
			data, err := json.MarshalIndent(result.Keys, "", "  ")
			if err != nil {
				return reportedError{Logger.ErrorfAndReturn("failed to encode keys: %v", err)}
			}
			fmt.Println(string(data))
			return nil
		}

		if len(result.Keys) == 0 {
			fmt.Println(ui.Warning.Sprint("!") + " " + ui.Highlight.Sprint(result.Ref) + " has no entries")
			return nil
		}
		for _, k := range result.Keys {
			line := "  " + k.Fingerprint
			if k.Local {
				line += " " + ui.Muted.Sprint("local")
			}
			fmt.Println(line)
		}
		return nil
	},
}
