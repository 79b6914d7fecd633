package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/PolarWolf314/veil/internal/configs"
	"github.com/PolarWolf314/veil/internal/ui"
	"github.com/spf13/cobra"
)

var (
	configInitKeyDir    string
	configInitDirectory string
	configInitAccount   string
	configInitRemote    string
	configInitForce     bool
)

func init() {
	configInitCmd.Flags().StringVar(&configInitKeyDir, "key-dir", "", "directory holding your SSH key pairs (default ~/.ssh)")
	configInitCmd.Flags().StringVar(&configInitDirectory, "directory", "", "authorized_keys file or URL base publishing <account>.keys")
	configInitCmd.Flags().StringVar(&configInitAccount, "account", "", "default directory account")
	configInitCmd.Flags().StringVar(&configInitRemote, "remote", "", "remote whose tracking refs count as pushed (default \"origin\")")
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing configuration")
}

func resetConfigInitState() {
	configInitKeyDir = ""
	configInitDirectory = ""
	configInitAccount = ""
	configInitRemote = ""
	configInitForce = false
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting config init command")
		path := configs.ConfigPath()

		_, err := os.Stat(path)
		switch {
		case err == nil && !configInitForce:
			fmt.Fprintln(cmd.OutOrStdout(), ui.Warning.Sprint("!") + " " + ui.Path.Sprint(path) + " already exists " + ui.Muted.Sprint("use --force to overwrite"))
			return nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return reportedError{Logger.ErrorfAndReturn("failed to check %s: %v", path, err)}
		}

		config := configs.DefaultConfig()
		config.Keys.Dir = configInitKeyDir
		config.Directory.Location = configInitDirectory
		config.Directory.Account = configInitAccount
		if configInitRemote != "" {
			config.Push.Remote = configInitRemote
		}

		Logger.Debugf("Writing config to %s", path)
		if err := configs.SaveConfig(path, config); err != nil {
			return reportedError{Logger.ErrorfAndReturn("%v", err)}
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success.Sprint("✓") + " Wrote " + ui.Path.Sprint(path))
		return nil
	},
}
