package cmd

import (
	"fmt"
	"os"

	"github.com/PolarWolf314/veil/internal/ui"
	"github.com/PolarWolf314/veil/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	keysSyncAccount         string
	keysSyncAddKey          []string
	keysSyncIncludeLocal    bool
	keysSyncPrivateKeyStdin bool
)

func init() {
	keysSyncCmd.Flags().StringVar(&keysSyncAccount, "account", "", "directory account whose keys to add")
	keysSyncCmd.Flags().StringArrayVar(&keysSyncAddKey, "add-key", nil, "public key file in authorized_keys format to add (repeatable)")
	keysSyncCmd.Flags().BoolVar(&keysSyncIncludeLocal, "include-local", false, "also add every local public key")
	keysSyncCmd.Flags().BoolVar(&keysSyncPrivateKeyStdin, "private-key-stdin", false, "read private key from stdin instead of from the key directory")
}

func resetKeysSyncState() {
	keysSyncAccount = ""
	keysSyncAddKey = nil
	keysSyncIncludeLocal = false
	keysSyncPrivateKeyStdin = false
}

var keysSyncCmd = &cobra.Command{
	Use:   "sync <encrypted-repo>",
	Short: "Seal the repository key for more public keys",
	Long: `Unlocks the keychain with one of your keys, then seals the repository key
for every offered public key that is not in the keychain yet.

Keys are offered by the directory account (--account, or directory.account
in the config), by --add-key files, and with --include-local by your own
key directory.

Examples:
  veil keys sync ../project-encrypted.git --account octocat
  veil keys sync ../project-encrypted.git --add-key bob.pub`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting keys sync command")
		spinner, cleanup := startSpinner("Syncing keys...")
		defer cleanup()

		var authorized []byte
		for _, path := range keysSyncAddKey {
			Logger.Debugf("Reading public keys from %s", path)
			data, err := os.ReadFile(path)
			if err != nil {
				return failure(spinner, fmt.Errorf("reading %s: %w", path, err))
			}
			authorized = append(authorized, data...)
			authorized = append(authorized, '\n')
		}

		keys, err := keyOptions(spinner, keysSyncPrivateKeyStdin)
		if err != nil {
			return failure(spinner, err)
		}

		result, err := workflows.SyncKeys(cmd.Context(), workflows.KeysOptions{
			Repo:           args[0],
			Account:        keysSyncAccount,
			AuthorizedKeys: authorized,
			IncludeLocal:   keysSyncIncludeLocal,
			Keys:           keys,
			Log:            Logger,
		})
		if err != nil {
			return failure(spinner, err)
		}

		if result.Added == 0 {
			spinner.FinalMSG = ui.Success.Sprint("✓") + fmt.Sprintf(" All %d offered key(s) already have access", result.Offered)
			return nil
		}
		spinner.FinalMSG = ui.Success.Sprint("✓") + fmt.Sprintf(" Added %d of %d offered key(s) to ", result.Added, result.Offered) +
			ui.Highlight.Sprint(result.Ref)
		return nil
	},
}
