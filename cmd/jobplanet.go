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
	"github.com/byeongteuk/btmap/internal/source/jobplanet"
)

var (
	jobplanetLimit      int
	jobplanetNoHeadless bool
)

var jobplanetCmd = &cobra.Command{
	Use:   "jobplanet",
	Short: "Collect Jobplanet ratings, reviews and salaries",
	Long:  "Logs in to Jobplanet with a headless browser and resolves every pending company. Progress is saved after each company.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(string(model.SourceJobplanet)); err != nil {
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

		return runJobplanet(ctx, store, companies, jobplanetLimit, !jobplanetNoHeadless)
	},
}

func init() {
	jobplanetCmd.Flags().IntVar(&jobplanetLimit, "limit", 0, "max companies to process (0 = all pending)")
	jobplanetCmd.Flags().BoolVar(&jobplanetNoHeadless, "no-headless", false, "show the browser window")
	rootCmd.AddCommand(jobplanetCmd)
}

func runJobplanet(ctx context.Context, store progress.Store, companies []*model.Company, limit int, headless bool) error {
	trackers, err := openTrackers(ctx, store, model.SourceJobplanet)
	if err != nil {
		return err
	}

	browser := jobplanet.NewChrome(jobplanet.ChromeConfig{
		Headless:   headless && cfg.Jobplanet.Headless,
		NavTimeout: time.Duration(cfg.Jobplanet.NavTimeoutSecs) * time.Second,
	})
	defer browser.Close()

	adapter := jobplanet.New(browser, jobplanet.Options{
		BaseURL:  cfg.Jobplanet.BaseURL,
		Email:    cfg.Jobplanet.Email,
		Password: cfg.Jobplanet.Password,
		Interval: source.Interval(cfg.Jobplanet.RateLimitMs),
		Policy:   matchPolicy(cfg, model.SourceJobplanet),
	})
	return crawl(ctx, cfg, adapter, trackers[model.SourceJobplanet], companies, limit)
}
