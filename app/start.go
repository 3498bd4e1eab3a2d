package app

import (
	"github.com/spf13/cobra"

	"github.com/settingsd/settingsd/internal/daemon"
	"github.com/settingsd/settingsd/internal/logger"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode")

	rootCmd.AddCommand(startCmd)
}

var (
	devMode bool

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the settingsd web service",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if err = loadConfig(); err != nil {
				return err
			}

			if devMode {
				cfg.DevMode = true
			}

			return logger.Init(cfg.Log)
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			d, err := daemon.New(&cfg)
			if err != nil {
				return err
			}

			return d.Start()
		},
	}
)
