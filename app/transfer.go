package app

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/settingsd/settingsd/internal/export"
)

var (
	transferFormat string
	transferGzip   bool
	transferFile   string
)

func init() { //nolint: gochecknoinits
	for _, cmd := range []*cobra.Command{exportCmd, importCmd} {
		cmd.Flags().StringVar(&transferFormat, "format", "json", "Dump format: json, yaml or csv")
		cmd.Flags().BoolVar(&transferGzip, "gzip", false, "Gzip-compress the dump")
	}

	exportCmd.Flags().StringVarP(&transferFile, "output", "o", "", "Output file (default stdout)")
	importCmd.Flags().StringVarP(&transferFile, "input", "i", "", "Input file (default stdin)")

	rootCmd.AddCommand(exportCmd, importCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump all settings to a portable format",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		format, err := export.ParseFormat(transferFormat)
		if err != nil {
			return err
		}

		eng, err := openEngine()
		if err != nil {
			return err
		}

		settings, err := eng.All(nil)
		if err != nil {
			return err
		}

		records, err := export.FromSettings(settings)
		if err != nil {
			return err
		}

		out := os.Stdout
		if transferFile != "" {
			if out, err = os.Create(transferFile); err != nil {
				return err
			}
			defer func() { _ = out.Close() }()
		}

		return export.Encode(out, records, format, transferGzip)
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load settings from a dump into the store",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		format, err := export.ParseFormat(transferFormat)
		if err != nil {
			return err
		}

		in := os.Stdin
		if transferFile != "" {
			if in, err = os.Open(transferFile); err != nil {
				return err
			}
			defer func() { _ = in.Close() }()
		}

		records, err := export.Decode(in, format, transferGzip)
		if err != nil {
			return err
		}

		eng, err := openEngine()
		if err != nil {
			return err
		}

		return export.Apply(eng, records)
	},
}
