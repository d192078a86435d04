// Package source defines the protocol shared by the per-source enrichment
// adapters and the resumable runner that drives them over the company list.
package source

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/model"
	"github.com/byeongteuk/btmap/internal/progress"
	"github.com/byeongteuk/btmap/internal/resilience"
)

// Adapter resolves one company against a remote source.
//
// Resolve returns the source record for c, or nil with a nil error when the
// source definitively has no match. Errors are classified with the
// resilience package: transient errors are retried, permanent errors abort
// the stage.
type Adapter interface {
	Name() model.Source
	Resolve(ctx context.Context, c *model.Company) (any, error)
}

// Report summarises one CrawlCompanies run.
type Report struct {
	RunID   string
	Source  model.Source
	Pending int
	Found   int
	Missed  int
	Failed  int
	Elapsed time.Duration

	// Results holds the records found in this run, keyed by company id.
	Results map[string]any
}

// Runner drives an Adapter over a company list with per-company
// checkpointing in a progress Tracker.
type Runner struct {
	Adapter Adapter
	Tracker *progress.Tracker
	Retry   resilience.RetryConfig

	// Breaker, when set, pauses the run while the source keeps failing
	// instead of burning through the list recording failures.
	Breaker *resilience.CircuitBreaker
}

// NewRunner returns a Runner with the default retry policy.
func NewRunner(a Adapter, t *progress.Tracker) *Runner {
	return &Runner{Adapter: a, Tracker: t, Retry: resilience.DefaultRetryConfig()}
}

// CrawlCompanies resolves every company the tracker has not completed, in
// list order, up to limit companies when limit > 0. Found records and
// definitive misses are marked completed; exhausted retries are marked
// failed and the run moves on. A permanent error or context cancellation
// stops the run and leaves the in-flight company unrecorded.
func (r *Runner) CrawlCompanies(ctx context.Context, companies []*model.Company, limit int) (*Report, error) {
	name := r.Adapter.Name()
	report := &Report{
		RunID:   uuid.NewString(),
		Source:  name,
		Results: make(map[string]any),
	}
	log := zap.L().With(
		zap.String("source", string(name)),
		zap.String("run_id", report.RunID),
	)

	byID := make(map[string]*model.Company, len(companies))
	ids := make([]string, 0, len(companies))
	for _, c := range companies {
		if c == nil {
			continue
		}
		if _, dup := byID[c.ID]; dup {
			continue
		}
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	pending := r.Tracker.Pending(ids)
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	report.Pending = len(pending)
	log.Info("crawl starting", zap.Int("companies", len(ids)), zap.Int("pending", len(pending)))

	start := time.Now()
	defer func() { report.Elapsed = time.Since(start) }()

	for i, id := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		c := byID[id]
		itemLog := log.With(zap.String("company_id", id))
		itemLog.Info(fmt.Sprintf("[%d/%d] %s", i+1, len(pending), c.Name))

		val, err := r.resolve(ctx, c)
		switch {
		case err == nil && isMiss(val):
			if err := r.Tracker.MarkCompleted(ctx, id, nil); err != nil {
				return report, err
			}
			report.Missed++
			itemLog.Info("no match")

		case err == nil:
			if err := r.Tracker.MarkCompleted(ctx, id, val); err != nil {
				return report, err
			}
			report.Found++
			report.Results[id] = val
			itemLog.Debug("resolved")

		case ctx.Err() != nil:
			return report, ctx.Err()

		case resilience.IsPermanent(err):
			log.Error("permanent error, aborting stage", zap.Error(err))
			return report, eris.Wrapf(err, "source: %s aborted", name)

		default:
			if mErr := r.Tracker.MarkFailed(ctx, id, err.Error()); mErr != nil {
				return report, mErr
			}
			report.Failed++
			itemLog.Warn("lookup failed", zap.Error(err))
		}
	}

	stats := r.Tracker.Stats()
	log.Info("crawl complete",
		zap.Int("found", report.Found),
		zap.Int("missed", report.Missed),
		zap.Int("failed", report.Failed),
		zap.Int("completed_total", stats.Completed),
		zap.Int("failed_total", stats.Failed),
	)
	return report, nil
}

// resolve runs the adapter under the retry policy, and under the breaker
// when one is set. An open breaker is waited out, then the company is
// tried again.
func (r *Runner) resolve(ctx context.Context, c *model.Company) (any, error) {
	retry := r.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(string(r.Adapter.Name()), c.Name)
	}
	attempt := func(ctx context.Context) (any, error) {
		return resilience.DoVal(ctx, retry, func(ctx context.Context) (any, error) {
			return r.Adapter.Resolve(ctx, c)
		})
	}
	if r.Breaker == nil {
		return attempt(ctx)
	}

	for {
		val, err := resilience.ExecuteVal(ctx, r.Breaker, attempt)
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			return val, err
		}
		zap.L().Warn("source failing repeatedly, pausing",
			zap.String("source", string(r.Adapter.Name())),
			zap.Duration("cooldown", r.Breaker.Remaining()),
		)
		if err := r.Breaker.Wait(ctx); err != nil {
			return nil, err
		}
	}
}

// isMiss reports whether v is nil or a nil pointer, map or slice.
func isMiss(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
