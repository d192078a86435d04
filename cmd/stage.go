package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/company"
	"github.com/byeongteuk/btmap/internal/config"
	"github.com/byeongteuk/btmap/internal/identity"
	"github.com/byeongteuk/btmap/internal/model"
	"github.com/byeongteuk/btmap/internal/progress"
	"github.com/byeongteuk/btmap/internal/resilience"
	"github.com/byeongteuk/btmap/internal/source"
)

// crawlSources are the sources with a progress ledger, in pipeline order.
var crawlSources = []model.Source{model.SourceJobplanet, model.SourceWanted, model.SourceGeocode}

func openProgress(ctx context.Context, c *config.Config) (progress.Store, error) {
	store, err := progress.OpenStore(ctx, c.Progress.Driver, c.ProgressDir(), c.Progress.DSN)
	if err != nil {
		return nil, eris.Wrap(err, "open progress store")
	}
	return store, nil
}

// openTrackers opens one tracker per source on store.
func openTrackers(ctx context.Context, store progress.Store, sources ...model.Source) (map[model.Source]*progress.Tracker, error) {
	trackers := make(map[model.Source]*progress.Tracker, len(sources))
	for _, src := range sources {
		t, err := progress.Open(ctx, store, string(src))
		if err != nil {
			return nil, eris.Wrapf(err, "open %s progress", src)
		}
		trackers[src] = t
	}
	return trackers, nil
}

// loadCompanies reads the company document and fails when it is empty, since
// every crawl stage starts from the parsed registry.
func loadCompanies(c *config.Config) ([]*model.Company, error) {
	companies, err := company.NewStore(c.CompaniesPath()).Load()
	if err != nil {
		return nil, err
	}
	if len(companies) == 0 {
		return nil, eris.Errorf("no companies in %s, run 'btmap parse' first", c.CompaniesPath())
	}
	return companies, nil
}

func matchPolicy(c *config.Config, src model.Source) source.MatchPolicy {
	p := source.DefaultMatchPolicy(src)
	p.Matcher = identity.NewMatcher(c.Match.Threshold)
	p.SmallResultFallback = c.Match.SmallResultFallback
	if c.Match.SmallResultMax > 0 {
		p.SmallResultMax = c.Match.SmallResultMax
	}
	return p
}

// newRunner wires an adapter to its tracker with the configured retry policy
// and a per-source circuit breaker.
func newRunner(c *config.Config, a source.Adapter, t *progress.Tracker) *source.Runner {
	r := source.NewRunner(a, t)
	r.Retry = resilience.FromSettings(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs, c.Retry.Multiplier)

	name := string(a.Name())
	r.Breaker = resilience.NewCircuitBreaker(resilience.BreakerConfig{
		FailureThreshold: c.Retry.BreakerThreshold,
		Cooldown:         time.Duration(c.Retry.BreakerCooldownSecs) * time.Second,
		OnStateChange: func(from, to resilience.CircuitState) {
			zap.L().Warn("circuit breaker state change",
				zap.String("source", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return r
}

// crawl runs one source over companies and logs the outcome.
func crawl(ctx context.Context, c *config.Config, a source.Adapter, t *progress.Tracker, companies []*model.Company, limit int) error {
	report, err := newRunner(c, a, t).CrawlCompanies(ctx, companies, limit)
	if report != nil {
		zap.L().Info("stage finished",
			zap.String("source", string(report.Source)),
			zap.String("run_id", report.RunID),
			zap.Int("pending", report.Pending),
			zap.Int("found", report.Found),
			zap.Int("missed", report.Missed),
			zap.Int("failed", report.Failed),
			zap.Duration("elapsed", report.Elapsed),
		)
	}
	return err
}
