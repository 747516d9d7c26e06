package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hourbook/hourbook/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect user configuration (config.yaml and HB_* variables)",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.AllSettings()
		if jsonOutput {
			return outputJSON(settings)
		}
		if used := config.ConfigFileUsed(); used != "" {
			printf("# %s\n", used)
		} else {
			printf("# no config file; defaults and environment only\n")
		}
		out, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}
		printf("%s", out)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		used := config.ConfigFileUsed()
		return emit(map[string]string{"config_file": used}, func() {
			if used == "" {
				printf("(none)\n")
				return
			}
			printf("%s\n", used)
		})
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
