// Package wanted resolves companies against Wanted, a hiring platform: open
// positions, founding year, head count and office address.
package wanted

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/fetcher"
	"github.com/byeongteuk/btmap/internal/identity"
	"github.com/byeongteuk/btmap/internal/model"
	"github.com/byeongteuk/btmap/internal/resilience"
	"github.com/byeongteuk/btmap/internal/source"
)

// DefaultBaseURL is the public Wanted site.
const DefaultBaseURL = "https://www.wanted.co.kr"

// DefaultMaxJobs caps the positions kept per company.
const DefaultMaxJobs = 5

// Options configures the adapter.
type Options struct {
	BaseURL   string
	Interval  time.Duration // minimum spacing of requests to the site
	Timeout   time.Duration
	MaxJobs   int
	UserAgent string
	Policy    source.MatchPolicy

	// DisableHTMLSearch skips the search-page fallback used when the search
	// API finds nothing.
	DisableHTMLSearch bool
}

// Adapter implements source.Adapter for Wanted.
type Adapter struct {
	baseURL string
	opts    Options
	pacer   *source.Pacer
	api     *fetcher.HTTPFetcher
}

// New returns an Adapter. API calls and search-page visits share one pacer,
// so the interval holds across both.
func New(opts Options) *Adapter {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = DefaultMaxJobs
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = fetcher.DefaultUserAgent
	}
	if opts.Policy.Source == "" {
		opts.Policy = source.DefaultMatchPolicy(model.SourceWanted)
	}

	pacer := source.NewPacer(opts.Interval)
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: opts.UserAgent,
		Timeout:   opts.Timeout,
		Retry:     resilience.RetryConfig{MaxAttempts: 1},
	})
	if u, err := url.Parse(opts.BaseURL); err == nil {
		f.SetLimiter(u.Host, pacer.Limiter())
	}

	return &Adapter{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		opts:    opts,
		pacer:   pacer,
		api:     f,
	}
}

// Name implements source.Adapter.
func (a *Adapter) Name() model.Source { return model.SourceWanted }

// Resolve implements source.Adapter. A company already linked to a Wanted
// page is fetched directly; otherwise the search API is tried with every
// search variant of the name, then the search page.
func (a *Adapter) Resolve(ctx context.Context, c *model.Company) (any, error) {
	log := zap.L().With(zap.String("source", string(model.SourceWanted)), zap.String("company_id", c.ID))

	if c.Wanted != nil {
		if id, ok := CompanyID(model.Deref(c.Wanted.URL)); ok {
			log.Debug("using known company page", zap.Int64("wanted_id", id))
			data, err := a.detail(ctx, id, nil)
			if err != nil {
				return nil, err
			}
			if data != nil {
				return data, nil
			}
		}
	}

	variants := identity.Normalize(c.Name).SearchVariants

	hit, err := a.searchAPI(ctx, c.Name, variants)
	if err != nil {
		return nil, err
	}
	if hit != nil {
		data, err := a.detail(ctx, hit.ID, hit)
		if err != nil {
			return nil, err
		}
		if data != nil {
			return data, nil
		}
	}

	if a.opts.DisableHTMLSearch {
		return nil, nil
	}
	id, err := a.searchHTML(ctx, c.Name, variants)
	if err != nil || id == 0 {
		return nil, err
	}
	data, err := a.detail(ctx, id, nil)
	if err != nil || data == nil {
		return nil, err
	}
	return data, nil
}

// searchAPI returns the accepted search hit, or nil when no variant found one.
func (a *Adapter) searchAPI(ctx context.Context, registryName string, variants []string) (*searchHit, error) {
	for _, q := range variants {
		var resp searchResponse
		err := a.api.GetJSON(ctx, a.searchURL(q), &resp)
		if errors.Is(err, fetcher.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "wanted: search %q", q)
		}

		hits := resp.Data.Companies
		names := make([]string, len(hits))
		for i, h := range hits {
			names[i] = h.Name
		}
		if i, kind := a.opts.Policy.Select(registryName, q, names); i >= 0 {
			zap.L().Debug("wanted: search hit",
				zap.String("query", q),
				zap.String("candidate", hits[i].Name),
				zap.Stringer("match", kind),
			)
			return &hits[i], nil
		}
	}
	return nil, nil
}

// detail fetches the company profile and its open positions. A profile that
// no longer exists yields nil.
func (a *Adapter) detail(ctx context.Context, id int64, hit *searchHit) (*model.WantedData, error) {
	var resp companyResponse
	err := a.api.GetJSON(ctx, a.companyAPIURL(id), &resp)
	if errors.Is(err, fetcher.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "wanted: company %d", id)
	}
	d := resp.Company
	if d.ID == 0 {
		d.ID = id
	}

	jobs, total, err := a.jobs(ctx, id)
	if err != nil {
		return nil, err
	}

	jobCount := total
	if jobCount == 0 {
		jobCount = d.ConfirmedPositionCount
	}

	founded := d.FoundedYear
	if founded == nil && hit != nil {
		founded = hit.FoundedYear
	}

	var address string
	if d.CompanyAddress != nil {
		address = strings.TrimSpace(d.CompanyAddress.FullLocation)
	}

	return &model.WantedData{
		IsHiring:    jobCount > 0,
		JobCount:    jobCount,
		Jobs:        jobs,
		Address:     model.Str(address),
		FoundedYear: founded,
		Employees:   model.Str(employeesTag(d)),
		URL:         model.Str(a.companyPageURL(d.ID)),
	}, nil
}

// jobs returns up to MaxJobs positions and the total count. A failing jobs
// endpoint is logged and treated as no positions; the profile is still
// worth recording.
func (a *Adapter) jobs(ctx context.Context, id int64) ([]model.WantedJob, int, error) {
	var resp jobsResponse
	err := a.api.GetJSON(ctx, a.jobsAPIURL(id), &resp)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, 0, ctx.Err()
	case resilience.IsPermanent(err):
		return nil, 0, eris.Wrapf(err, "wanted: jobs %d", id)
	default:
		if !errors.Is(err, fetcher.ErrNotFound) {
			zap.L().Warn("wanted: jobs lookup failed", zap.Int64("wanted_id", id), zap.Error(err))
		}
		return []model.WantedJob{}, 0, nil
	}

	jobs := make([]model.WantedJob, 0, min(len(resp.Data), a.opts.MaxJobs))
	for _, j := range resp.Data {
		if len(jobs) == a.opts.MaxJobs {
			break
		}
		jobs = append(jobs, model.WantedJob{
			Title: strings.TrimSpace(j.Position),
			URL:   a.jobPageURL(j.ID),
		})
	}
	return jobs, len(resp.Data), nil
}
