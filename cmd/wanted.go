package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/byeongteuk/btmap/internal/model"
	"github.com/byeongteuk/btmap/internal/progress"
	"github.com/byeongteuk/btmap/internal/source"
	"github.com/byeongteuk/btmap/internal/source/wanted"
)

var wantedLimit int

var wantedCmd = &cobra.Command{
	Use:   "wanted",
	Short: "Collect Wanted hiring status and open positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(string(model.SourceWanted)); err != nil {
			return err
		}
		companies, err := loadCompanies(cfg)
		if err != nil {
			return err
		}
		store, err := openProgress(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		return runWanted(ctx, store, companies, wantedLimit)
	},
}

func init() {
	wantedCmd.Flags().IntVar(&wantedLimit, "limit", 0, "max companies to process (0 = all pending)")
	rootCmd.AddCommand(wantedCmd)
}

func runWanted(ctx context.Context, store progress.Store, companies []*model.Company, limit int) error {
	trackers, err := openTrackers(ctx, store, model.SourceWanted)
	if err != nil {
		return err
	}
	adapter := wanted.New(wanted.Options{
		BaseURL:  cfg.Wanted.BaseURL,
		Interval: source.Interval(cfg.Wanted.RateLimitMs),
		Timeout:  time.Duration(cfg.Wanted.TimeoutSecs) * time.Second,
		MaxJobs:  cfg.Wanted.MaxJobs,
		Policy:   matchPolicy(cfg, model.SourceWanted),
	})
	return crawl(ctx, cfg, adapter, trackers[model.SourceWanted], companies, limit)
}
