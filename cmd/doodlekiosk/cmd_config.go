package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/doodlekiosk/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPrintCmd, configSaveCmd)
	configSaveCmd.Flags().StringP("output", "o", "", "write to this path instead of the active config file")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or save the configuration",
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), loadConfig().String())
		return err
	},
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the effective configuration to disk",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		path, _ := cmd.Flags().GetString("output")
		if path == "" {
			path = config.NewLoader(version, cfgPath).GetConfigPath()
		}
		if path == "" {
			path = config.DefaultPath()
		}
		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration saved to", path)
		return nil
	},
}
