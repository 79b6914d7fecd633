package cmd

import (
	"fmt"

	"github.com/PolarWolf314/veil/internal/ui"
	"github.com/PolarWolf314/veil/internal/utils"
	"github.com/PolarWolf314/veil/internal/workflows"
	"github.com/spf13/cobra"
)

var keysCheckPrivateKeyStdin bool

func init() {
	keysCheckCmd.Flags().BoolVar(&keysCheckPrivateKeyStdin, "private-key-stdin", false, "read private key from stdin instead of from the key directory")
}

func resetKeysCheckState() {
	keysCheckPrivateKeyStdin = false
}

var keysCheckCmd = &cobra.Command{
	Use:   "check <encrypted-repo>",
	Short: "Check that one of your keys unlocks the keychain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting keys check command")
		spinner, cleanup := startSpinner("Unlocking keychain...")
		defer cleanup()

		keys, err := keyOptions(spinner, keysCheckPrivateKeyStdin)
		if err != nil {
			return failure(spinner, err)
		}

		result, err := workflows.CheckUnlock(cmd.Context(), workflows.KeysOptions{
			Repo: args[0],
			Keys: keys,
			Log:  Logger,
		})
		if err != nil {
			return failure(spinner, err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + fmt.Sprintf(" Unlocked %s (%d entries)", ui.Highlight.Sprint(result.Ref), result.Entries) +
			"\n  Your keys: " + utils.FormatList(result.Matched, ui.Info)
		return nil
	},
}
