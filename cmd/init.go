package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnoswap-labs/borrowck/check"
	"github.com/gnoswap-labs/borrowck/internal"
)

// initCmd: borrowck init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file listing every rule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfigurationFile(cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created: %s\n", cfgFile)
		return nil
	},
}

func initConfigurationFile(configurationPath string) error {
	if configurationPath == "" {
		configurationPath = check.DefaultConfigFile
	}
	config := check.DefaultConfig()
	config.Rules = internal.DefaultRules()
	return check.WriteConfig(configurationPath, config)
}
