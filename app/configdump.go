package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/settingsd/settingsd/internal/config"
)

func init() { //nolint: gochecknoinits
	configDumpCmd.Flags().BoolVar(&dumpJSON, "json", false, "Dump as JSON instead of TOML")

	rootCmd.AddCommand(configDumpCmd)
}

var (
	dumpJSON bool

	configDumpCmd = &cobra.Command{
		Use:   "config-dump",
		Short: "Print the effective configuration after defaults and overrides",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err = loadConfig(); err != nil {
				return err
			}

			dump := ""
			if dumpJSON {
				dump, err = config.DumpConfigJSON(cfg)
			} else {
				dump, err = config.DumpConfig(cfg)
			}

			if err != nil {
				return err
			}

			fmt.Println(dump)

			return nil
		},
	}
)
