package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:          "issue-tracker",
	Short:        "Issue tracker API: list, create, update and delete issues per project",
	SilenceUsage: true,
	RunE:         runAPI,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("storage", "", "Storage driver: postgres, sqlite, mongo or memory (overrides STORAGE_DRIVER)")
	_ = viper.BindPFlag("storage_driver", rootCmd.PersistentFlags().Lookup("storage"))

	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(replayEventsCmd)
}
