package cmd

import (
	"fmt"
	"time"

	"github.com/PolarWolf314/veil/internal/ui"
	"github.com/PolarWolf314/veil/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	pushRef             string
	pushRemote          string
	pushAccount         string
	pushPrivateKeyStdin bool
)

func init() {
	pushCmd.Flags().StringVar(&pushRef, "ref", "", "branch or ref to push (default \"main\")")
	pushCmd.Flags().StringVar(&pushRemote, "remote", "", "remote whose tracking refs are already pushed, \"-\" for none")
	pushCmd.Flags().StringVar(&pushAccount, "account", "", "directory account to seal a new keychain for")
	pushCmd.Flags().BoolVar(&pushPrivateKeyStdin, "private-key-stdin", false, "read private key from stdin instead of from the key directory")
}

func resetPushCommandState() {
	pushRef = ""
	pushRemote = ""
	pushAccount = ""
	pushPrivateKeyStdin = false
}

var pushCmd = &cobra.Command{
	Use:   "push <encrypted-repo> | push <plaintext-repo> <encrypted-repo>",
	Short: "Encrypt new commits into the encrypted repository",
	Long: `Encrypts every object reachable from the ref that the encrypted repository
does not have yet, then advances the same ref there.

With one argument the plaintext repository is the one containing the
working directory.

The first push into a repository without a keychain generates a repository
key and seals it for your local public keys and, if configured, the keys of
your directory account.

Examples:
  # Push main
  veil push ../project-encrypted.git

  # Push a feature branch from another checkout
  veil push ~/src/project ../project-encrypted.git --ref feature

  # Use a key held elsewhere
  cat ~/keys/deploy | veil push ../project-encrypted.git --private-key-stdin`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting push command")
		spinner, cleanup := startSpinner("Pushing...")
		defer cleanup()

		enc := args[len(args)-1]
		plain, err := repoArg(args[:len(args)-1], 0)
		if err != nil {
			return failure(spinner, err)
		}
		Logger.Debugf("Plaintext repository: %s, encrypted repository: %s", plain, enc)

		keys, err := keyOptions(spinner, pushPrivateKeyStdin)
		if err != nil {
			return failure(spinner, err)
		}

		result, err := workflows.Push(cmd.Context(), workflows.PushOptions{
			Source:  plain,
			Dest:    enc,
			Ref:     pushRef,
			Remote:  pushRemote,
			Account: pushAccount,
			Keys:    keys,
			Log:     Logger,
		})
		if err != nil {
			return failure(spinner, err)
		}

		msg := ""
		if result.KeychainCreated {
			msg += ui.Success.Sprint("✓") + fmt.Sprintf(" Created keychain for %d key(s)\n", result.Recipients)
		}
		if !result.RefUpdated {
			msg += ui.Success.Sprint("✓") + " " + ui.Highlight.Sprint(result.Ref) + " is up to date"
		} else {
			msg += ui.Success.Sprint("✓") + " Pushed " + ui.Highlight.Sprint(result.Ref) + " " +
				ui.ObjectID.Sprint(result.Tip.Short()) + " → " + ui.ObjectID.Sprint(result.Head.Short()) + "\n" +
				fmt.Sprintf("  Encrypted %d blob(s), %d tree(s), %d commit(s) in %s.",
					result.Blobs, result.Trees, result.Commits, result.Duration.Round(time.Millisecond))
		}
		spinner.FinalMSG = msg
		return nil
	},
}
