package cmd

import (
	"fmt"
	"time"

	"github.com/PolarWolf314/veil/internal/ui"
	"github.com/PolarWolf314/veil/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	pullRef             string
	pullUpdateRef       string
	pullPrivateKeyStdin bool
)

func init() {
	pullCmd.Flags().StringVar(&pullRef, "ref", "", "encrypted branch or ref to pull (default \"main\")")
	pullCmd.Flags().StringVar(&pullUpdateRef, "update-ref", "", "plaintext branch or ref to fast-forward to the pulled commit")
	pullCmd.Flags().BoolVar(&pullPrivateKeyStdin, "private-key-stdin", false, "read private key from stdin instead of from the key directory")
}

func resetPullCommandState() {
	pullRef = ""
	pullUpdateRef = ""
	pullPrivateKeyStdin = false
}

var pullCmd = &cobra.Command{
	Use:   "pull <encrypted-repo> [plaintext-repo]",
	Short: "Decrypt commits from the encrypted repository",
	Long: `Decrypts every object reachable from the encrypted ref into the plaintext
repository. Pulled commits have exactly the ids they had when they were
pushed.

Without a second argument the plaintext repository is the one containing
the working directory. No plaintext ref moves unless --update-ref is given.

Examples:
  # Decrypt main and print the commit
  veil pull ../project-encrypted.git

  # Decrypt main into a fresh repository and check it out
  git init restored && veil pull ../project-encrypted.git restored --update-ref main`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting pull command")
		spinner, cleanup := startSpinner("Pulling...")
		defer cleanup()

		enc := args[0]
		plain, err := repoArg(args, 1)
		if err != nil {
			return failure(spinner, err)
		}
		Logger.Debugf("Encrypted repository: %s, plaintext repository: %s", enc, plain)

		keys, err := keyOptions(spinner, pullPrivateKeyStdin)
		if err != nil {
			return failure(spinner, err)
		}

		result, err := workflows.Pull(cmd.Context(), workflows.PullOptions{
			Source:    enc,
			Dest:      plain,
			Ref:       pullRef,
			UpdateRef: pullUpdateRef,
			Keys:      keys,
			Log:       Logger,
		})
		if err != nil {
			return failure(spinner, err)
		}

		msg := ui.Success.Sprint("✓") + " Pulled " + ui.Highlight.Sprint(result.Ref) + " " +
			ui.ObjectID.Sprint(result.Tip.Short()) + " → " + ui.ObjectID.Sprint(result.Head.String()) + "\n" +
			fmt.Sprintf("  Decrypted %d blob(s), %d tree(s), %d commit(s) in %s.",
				result.Blobs, result.Trees, result.Commits, result.Duration.Round(time.Millisecond))
		if result.RefUpdated {
			msg += "\n  " + ui.Highlight.Sprint(result.UpdateRef) + " updated."
		}
		spinner.FinalMSG = msg
		return nil
	},
}
