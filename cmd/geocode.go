package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/enrich"
	"github.com/byeongteuk/btmap/internal/model"
	"github.com/byeongteuk/btmap/internal/progress"
	"github.com/byeongteuk/btmap/internal/source"
	"github.com/byeongteuk/btmap/internal/source/geocoder"
	"github.com/byeongteuk/btmap/pkg/geocode"
)

var geocodeLimit int

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocode company addresses with Naver, falling back to Kakao",
	Long: "Geocodes each company's final address, after Jobplanet and Wanted addresses " +
		"take priority over the registry. Companies whose address changed since they were geocoded are queued again.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(string(model.SourceGeocode)); err != nil {
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

		return runGeocode(ctx, store, companies, geocodeLimit)
	},
}

func init() {
	geocodeCmd.Flags().IntVar(&geocodeLimit, "limit", 0, "max companies to process (0 = all pending)")
	rootCmd.AddCommand(geocodeCmd)
}

func runGeocode(ctx context.Context, store progress.Store, companies []*model.Company, limit int) error {
	trackers, err := openTrackers(ctx, store, crawlSources...)
	if err != nil {
		return err
	}
	resolveAddresses(trackers, companies)

	tracker := trackers[model.SourceGeocode]
	if _, err := geocoder.ForgetStale(ctx, tracker, companies); err != nil {
		return err
	}

	client := newGeocodeClient()
	zap.L().Info("geocode providers", zap.Strings("providers", client.Providers()))

	return crawl(ctx, cfg, geocoder.New(client), tracker, geocoder.Eligible(companies), limit)
}

// resolveAddresses settles each company's address from the registry and the
// crawled sources, without touching coordinates.
func resolveAddresses(trackers map[model.Source]*progress.Tracker, companies []*model.Company) {
	m := enrich.NewMerger(trackers)
	m.MergeSource(companies, model.SourceRegistry)
	m.MergeSource(companies, model.SourceJobplanet)
	m.MergeSource(companies, model.SourceWanted)
	enrich.ApplyAddressPriority(companies)
}

func newGeocodeClient() *geocode.CascadeClient {
	return geocode.NewCascadeClient(
		geocode.NewNaver(cfg.Naver.ClientID, cfg.Naver.ClientSecret,
			geocode.WithBaseURL(cfg.Naver.URL),
			geocode.WithInterval(source.Interval(cfg.Naver.RateLimitMs)),
		),
		geocode.NewKakao(cfg.Kakao.APIKey,
			geocode.WithBaseURL(cfg.Kakao.URL),
			geocode.WithInterval(source.Interval(cfg.Kakao.RateLimitMs)),
		),
	)
}
