package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/company"
	"github.com/byeongteuk/btmap/internal/model"
	"github.com/byeongteuk/btmap/internal/registry"
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse the registry spreadsheet into the company document",
	Long: "Reads the downloaded registry spreadsheet and writes data/companies.json. " +
		"Enrichment already present for a company is kept.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := parseRegistry()
		return err
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

// parseRegistry rebuilds the company document from the spreadsheet.
func parseRegistry() ([]*model.Company, error) {
	rows, err := registry.ReadTable(cfg.ExcelPath())
	if err != nil {
		return nil, err
	}
	companies, err := registry.Parse(rows)
	if err != nil {
		return nil, err
	}

	store := company.NewStore(cfg.CompaniesPath())
	existing, err := store.Load()
	if err != nil {
		return nil, err
	}
	kept := carryOver(companies, existing)

	if err := store.Save(companies); err != nil {
		return nil, err
	}
	zap.L().Info("company document written",
		zap.String("path", cfg.CompaniesPath()),
		zap.Int("companies", len(companies)),
		zap.Int("enrichment_kept", kept),
	)
	return companies, nil
}

// carryOver copies enrichment from the previous document onto freshly
// parsed companies with the same id, so known Jobplanet and Wanted links
// survive a re-parse. Registry fields always come from the new parse.
func carryOver(parsed, existing []*model.Company) int {
	prev := company.Index(existing)
	n := 0
	for _, c := range parsed {
		old, ok := prev[c.ID]
		if !ok {
			continue
		}
		if old.Jobplanet == nil && old.Wanted == nil && old.Lat == nil {
			continue
		}
		c.Jobplanet = old.Jobplanet
		c.Wanted = old.Wanted
		c.Lat, c.Lng = old.Lat, old.Lng
		n++
	}
	return n
}
