package cmd

import (
	"errors"

	logger "github.com/PolarWolf314/veil/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	debug   bool
	Logger  logger.Logger

	// RootCmd is the veil command.
	RootCmd = &cobra.Command{
		Use:   "veil",
		Short: "Mirror a git repository into an encrypted twin",
		Long: `veil mirrors the commits of a plaintext git repository into a second
repository whose blobs, trees and commits are encrypted. The encrypted
repository can be hosted anywhere; collaborators holding one of the keys in
its keychain can pull the original history back out, with the original
commit ids.

Examples:
  # Push main into an encrypted bare repository
  veil push . ../project-encrypted.git

  # Pull it back into a fresh clone
  veil pull ../project-encrypted.git . --update-ref main

  # Give a collaborator access
  veil keys sync ../project-encrypted.git --account octocat`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing %s with verbose=%t, debug=%t", cmd.CommandPath(), verbose, debug)
		},
	}
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	RootCmd.AddCommand(pushCmd)
	RootCmd.AddCommand(pullCmd)
	RootCmd.AddCommand(keysCmd)
	RootCmd.AddCommand(remapCmd)
	RootCmd.AddCommand(ConfigCmd)
	RootCmd.AddCommand(logCmd)
}

// reportedError is a failure whose message was already shown to the user.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// IsReported reports whether err was already printed by a command.
func IsReported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	resetPushCommandState()
	resetPullCommandState()
	resetKeysCommandState()
	resetRemapCommandState()
	resetConfigCommandState()
	resetLogCommandState()
}
