package cmd

import (
	"fmt"

	"github.com/PolarWolf314/veil/internal/ui"
	"github.com/PolarWolf314/veil/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	remapGetReverse bool
)

var remapCmd = &cobra.Command{
	Use:   "remap",
	Short: "Inspect the encrypted-to-plaintext id table",
	Long: `Every object pushed or pulled is recorded in the remap table of the
encrypted repository as a pair of ids: the encrypted object and its
plaintext original.`,
}

func init() {
	remapGetCmd.Flags().BoolVarP(&remapGetReverse, "reverse", "r", false, "look up a plaintext id instead of an encrypted one")

	remapCmd.AddCommand(remapGetCmd)
	remapCmd.AddCommand(remapListCmd)
}

func resetRemapCommandState() {
	remapGetReverse = false
}

var remapGetCmd = &cobra.Command{
	Use:   "get <encrypted-repo> <id>",
	Short: "Print the counterpart of an object id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting remap get command")

		result, err := workflows.RemapLookup(cmd.Context(), workflows.RemapOptions{
			Repo:    args[0],
			ID:      args[1],
			Reverse: remapGetReverse,
			Log:     Logger,
		})
		if err != nil {
			return reportedError{Logger.ErrorfAndReturn("failed to look up %s: %v", args[1], err)}
		}
		if !result.Found {
			return reportedError{Logger.ErrorfAndReturn("%s has no remap entry", args[1])}
		}

		if remapGetReverse {
			fmt.Println(result.Encrypted)
		} else {
			fmt.Println(result.Plaintext)
		}
		return nil
	},
}

var remapListCmd = &cobra.Command{
	Use:   "list <encrypted-repo>",
	Short: "Print every remap entry as \"<encrypted> <plaintext>\"",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting remap list command")

		result, err := workflows.RemapList(cmd.Context(), workflows.RemapOptions{
			Repo: args[0],
			Log:  Logger,
		})
		if err != nil {
			return reportedError{Logger.ErrorfAndReturn("failed to read remap table: %v", err)}
		}

		Logger.Infof("%s at %s: %d entries", result.Ref, ui.ObjectID.Sprint(result.Head.Short()), len(result.Entries))
		for _, e := range result.Entries {
			fmt.Println(e.String())
		}
		return nil
	},
}
