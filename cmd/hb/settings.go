package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/hourbook/hourbook/internal/rpc"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and write settings stored in the database",
	Long: `Settings live in the database and travel with it, unlike the user
configuration shown by 'hb config show'.`,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var setting rpc.SettingArgs
		if err := rpc.Decode(executor, rpc.OpGetSetting, &rpc.SettingArgs{Key: args[0]}, &setting); err != nil {
			return err
		}
		return emit(&setting, func() { printf("%s\n", setting.Value) })
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setting := rpc.SettingArgs{Key: args[0], Value: args[1]}
		if err := rpc.Decode(executor, rpc.OpSetSetting, &setting, nil); err != nil {
			return err
		}
		return emit(&setting, func() { printf("%s %s = %s\n", checkmark(), setting.Key, setting.Value) })
	},
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print all settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := map[string]string{}
		if err := rpc.Decode(executor, rpc.OpListSettings, nil, &settings); err != nil {
			return err
		}
		return emit(settings, func() {
			keys := make([]string, 0, len(settings))
			for k := range settings {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				printf("%s = %s\n", k, settings[k])
			}
		})
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd, settingsListCmd)
	rootCmd.AddCommand(settingsCmd)
}
