package cmd

import (
	"github.com/spf13/cobra"
)

// ConfigCmd is the top-level config command.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage veil configuration",
	Long: `Provides commands for managing the user configuration file.

The configuration names the key directory, the directory service used to
find collaborators' public keys, the refs veil keeps its tables in, and the
identity written on encrypted commits.

Examples:
  # Create the configuration with a GitHub directory account
  veil config init --directory https://github.com --account octocat

  # Show the effective configuration
  veil config show`,
}

func init() {
	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configShowCmd)
}

func resetConfigCommandState() {
	resetConfigInitState()
	resetConfigShowState()
}
