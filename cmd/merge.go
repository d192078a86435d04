package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/byeongteuk/btmap/internal/company"
	"github.com/byeongteuk/btmap/internal/enrich"
	"github.com/byeongteuk/btmap/internal/model"
	"github.com/byeongteuk/btmap/internal/progress"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge collected source data into the company document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		companies, err := loadCompanies(cfg)
		if err != nil {
			return err
		}
		store, err := openProgress(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		_, err = mergeAll(ctx, store, companies)
		return err
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}

// mergeAll folds every source into companies and saves the document.
func mergeAll(ctx context.Context, store progress.Store, companies []*model.Company) (enrich.Summary, error) {
	trackers, err := openTrackers(ctx, store, crawlSources...)
	if err != nil {
		return enrich.Summary{}, err
	}
	summary := enrich.NewMerger(trackers).EnrichAll(companies)
	if err := company.NewStore(cfg.CompaniesPath()).Save(companies); err != nil {
		return summary, err
	}
	return summary, nil
}
