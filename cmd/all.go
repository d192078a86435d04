package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/config"
	"github.com/byeongteuk/btmap/internal/model"
	"github.com/byeongteuk/btmap/internal/progress"
)

var allLimit int

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run the whole pipeline: download, parse, crawl, geocode, merge",
	Long: "Runs every stage in order. Crawl stages whose credentials are not configured are " +
		"skipped with a warning. Addresses are merged before geocoding so coordinates match the final address.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runAll(ctx, allLimit)
	},
}

func init() {
	allCmd.Flags().IntVar(&allLimit, "limit", 0, "max companies per crawl stage (0 = all pending)")
	rootCmd.AddCommand(allCmd)
}

func runAll(ctx context.Context, limit int) error {
	if err := cfg.Validate("all"); err != nil {
		return err
	}
	if _, err := downloadRegistry(ctx, false); err != nil {
		return err
	}
	companies, err := parseRegistry()
	if err != nil {
		return err
	}

	store, err := openProgress(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	crawls := []stage{
		{model.SourceJobplanet, func(ctx context.Context, s progress.Store, cs []*model.Company, n int) error {
			return runJobplanet(ctx, s, cs, n, true)
		}},
		{model.SourceWanted, runWanted},
	}
	return runStages(ctx, store, companies, limit, crawls, stage{model.SourceGeocode, runGeocode})
}

type stage struct {
	source model.Source
	run    func(context.Context, progress.Store, []*model.Company, int) error
}

// runStages runs each configured crawl, merges, geocodes the merged
// addresses and merges again. A failed stage is logged and the run carries
// on; the failures are joined into the returned error. Cancellation stops
// the run at the next stage boundary.
func runStages(ctx context.Context, store progress.Store, companies []*model.Company, limit int, crawls []stage, geo stage) error {
	var errs []error
	runStage := func(st stage) {
		if !stageConfigured(cfg, st.source) {
			return
		}
		if err := st.run(ctx, store, companies, limit); err != nil {
			zap.L().Error("stage failed", zap.String("source", string(st.source)), zap.Error(err))
			errs = append(errs, eris.Wrapf(err, "%s stage", st.source))
		}
	}

	for _, st := range crawls {
		if ctx.Err() != nil {
			return errors.Join(append(errs, ctx.Err())...)
		}
		runStage(st)
	}

	// Geocoding reads the merged addresses.
	if _, err := mergeAll(ctx, store, companies); err != nil {
		return errors.Join(append(errs, err)...)
	}
	if ctx.Err() == nil {
		runStage(geo)
	}

	summary, err := mergeAll(ctx, store, companies)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	zap.L().Info("pipeline complete",
		zap.Int("companies", summary.Total),
		zap.Int("with_coords", summary.WithCoords),
		zap.Int("failed_stages", len(errs)),
	)
	return errors.Join(errs...)
}

// stageConfigured reports whether src has the credentials it needs. A
// missing credential is logged as a skipped stage.
func stageConfigured(c *config.Config, src model.Source) bool {
	err := c.Validate(string(src))
	if err == nil {
		return true
	}
	if errors.Is(err, config.ErrMissingCredential) {
		zap.L().Warn("skipping stage", zap.String("source", string(src)), zap.Error(err))
		return false
	}
	return true
}
