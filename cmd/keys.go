package cmd

import (
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage who can unlock an encrypted repository",
	Long: `The keychain of an encrypted repository holds the repository key sealed for
each collaborator's SSH public key (RSA only). Anyone whose private key
matches an entry can push and pull.

Examples:
  # Add a collaborator's published keys
  veil keys sync ../project-encrypted.git --account octocat

  # See who has access
  veil keys list ../project-encrypted.git

  # Check that your key works
  veil keys check ../project-encrypted.git`,
}

func init() {
	keysCmd.AddCommand(keysSyncCmd)
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysCheckCmd)
}

func resetKeysCommandState() {
	resetKeysSyncState()
	resetKeysListState()
	resetKeysCheckState()
}
