package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zjrosen/actionreg/internal/config"
	"github.com/zjrosen/actionreg/internal/flags"
	"github.com/zjrosen/actionreg/internal/presentation"
)

var flagsSetCmd = &cobra.Command{
	Use:   "flags:set NAME true|false",
	Short: "Turn a feature flag on or off in the config file",
	Long: `Turn a feature flag on or off in the config file in use.

Known flags:
  auth-enable     attach a trust and the caller's project to registered actions
  resolve-cache   cache resolved actions in memory
  seed-on-start   seed system actions whenever the store is opened

Examples:
  actionreg flags:set auth-enable true
  actionreg flags:set seed-on-start false -c ./config.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if _, known := flags.Defaults()[name]; !known {
			return fmt.Errorf("unknown flag %q", name)
		}
		enabled, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("flag value must be true or false, got %q", args[1])
		}

		path := configPath()
		if err := config.SaveFlag(path, name, enabled); err != nil {
			return err
		}
		return presentation.NewFormatter(cmd.OutOrStdout(), outputFormat).
			FormatResult(map[string]any{"flag": name, "enabled": enabled, "config": path})
	},
}

var configInitCmd = &cobra.Command{
	Use:   "config:init",
	Short: "Write a default config file",
	Long: `Write a commented default config file to --config, or to
.actionreg/config.yaml when no config file is given.

Example:
  actionreg config:init`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = localConfigPath
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return err
	},
}

func init() {
	rootCmd.AddCommand(flagsSetCmd, configInitCmd)
}
