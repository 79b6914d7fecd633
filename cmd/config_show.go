package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/PolarWolf314/veil/internal/configs"
	"github.com/spf13/cobra"
)

var configShowJSON bool

func init() {
	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "output in JSON format")
}

func resetConfigShowState() {
	configShowJSON = false
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Displays the configuration veil uses: the file at the user config path
over the built-in defaults.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting config show command")
		Logger.Debugf("Loading config from %s", configs.ConfigPath())

		config, err := configs.LoadUserConfig()
		if err != nil {
			return reportedError{Logger.ErrorfAndReturn("%v", err)}
		}

		if configShowJSON {
			data, err := json.MarshalIndent(config, "", "  ")
			if err != nil {
				return reportedError{Logger.ErrorfAndReturn("failed to encode config: %v", err)}
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", configs.ConfigPath())
		return toml.NewEncoder(cmd.OutOrStdout()).Encode(config)
	},
}
