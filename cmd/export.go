package main

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/byeongteuk/btmap/internal/company"
	"github.com/byeongteuk/btmap/internal/export"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the merged companies as GeoJSON or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		companies, err := company.NewStore(cfg.CompaniesPath()).Load()
		if err != nil {
			return err
		}
		out, err := defaultExportPath(cfg.DataDir, exportFormat)
		if err != nil {
			return err
		}
		if exportOut != "" {
			out = exportOut
		}

		switch exportFormat {
		case "geojson":
			_, err = export.WriteGeoJSON(out, companies)
		case "xlsx":
			err = export.WriteXLSX(out, companies)
		}
		return err
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "geojson", "output format: geojson or xlsx")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default data/companies.<format>)")
	rootCmd.AddCommand(exportCmd)
}

func defaultExportPath(dataDir, format string) (string, error) {
	switch format {
	case "geojson", "xlsx":
		return filepath.Join(dataDir, "companies."+format), nil
	default:
		return "", eris.Errorf("unknown export format %q (want geojson or xlsx)", format)
	}
}
