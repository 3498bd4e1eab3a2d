// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"

	"github.com/settingsd/settingsd/internal/config"
)

var (
	configPath string // Path to the configuration directory

	cfg config.Config
	err error
)

var rootCmd = &cobra.Command{
	Use:   "settingsd",
	Short: "settingsd is a scoped key-value settings store",
	Long: `settingsd stores application settings as JSON values, globally or attached
to an owner model, with nested dot-notation access, validation, caching and
change notifications. It serves a REST API and ships CLI commands for direct
store access.`,
	Args: cobra.OnlyValidArgs,
}

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "etc/", "Path to the configuration directory")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the configuration for commands that touch the store.
func loadConfig() error {
	cfg, err = config.ReadConfig(configPath)

	return err
}
