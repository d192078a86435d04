// Package jobplanet resolves companies against Jobplanet, a company review
// site: rating, review count, average salary and address. The site renders
// client-side and hides details behind a login, so pages are driven through
// a real browser.
package jobplanet

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/identity"
	"github.com/byeongteuk/btmap/internal/model"
	"github.com/byeongteuk/btmap/internal/resilience"
	"github.com/byeongteuk/btmap/internal/source"
)

// DefaultBaseURL is the public Jobplanet site.
const DefaultBaseURL = "https://www.jobplanet.co.kr"

// ErrMissingCredentials is returned when no login is configured.
var ErrMissingCredentials = eris.New("jobplanet: email and password are required")

// ErrLoginFailed is returned when the sign-in form does not redirect away.
var ErrLoginFailed = eris.New("jobplanet: login failed")

// Options configures the adapter.
type Options struct {
	BaseURL  string
	Email    string
	Password string
	Interval time.Duration // minimum spacing of page loads
	Policy   source.MatchPolicy
}

// Adapter implements source.Adapter for Jobplanet.
type Adapter struct {
	browser  Browser
	baseURL  string
	opts     Options
	pacer    *source.Pacer
	loggedIn bool
}

// New returns an Adapter driving b. The adapter does not own b.
func New(b Browser, opts Options) *Adapter {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Policy.Source == "" {
		opts.Policy = source.DefaultMatchPolicy(model.SourceJobplanet)
	}
	return &Adapter{
		browser: b,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		opts:    opts,
		pacer:   source.NewPacer(opts.Interval),
	}
}

// Name implements source.Adapter.
func (a *Adapter) Name() model.Source { return model.SourceJobplanet }

// Login signs in once per adapter. Missing credentials and a rejected login
// are permanent: every company would fail the same way.
func (a *Adapter) Login(ctx context.Context) error {
	if a.loggedIn {
		return nil
	}
	if a.opts.Email == "" || a.opts.Password == "" {
		return resilience.NewPermanentError(ErrMissingCredentials, 0)
	}

	zap.L().Info("jobplanet: logging in")
	p, err := a.browser.Login(ctx, a.baseURL+"/users/sign_in", a.opts.Email, a.opts.Password)
	if err != nil {
		return eris.Wrap(err, "jobplanet: login")
	}
	if strings.Contains(p.URL, "sign_in") {
		reason := "still on the sign-in page"
		if doc, err := parseDoc(p); err == nil {
			if msg := loginError(doc); msg != "" {
				reason = msg
			}
		}
		return resilience.NewPermanentError(eris.Wrap(ErrLoginFailed, reason), 0)
	}

	a.loggedIn = true
	zap.L().Info("jobplanet: logged in")
	return nil
}

// Resolve implements source.Adapter. A company already linked to a
// Jobplanet page is fetched directly; otherwise each search variant of the
// name is tried on the search page.
func (a *Adapter) Resolve(ctx context.Context, c *model.Company) (any, error) {
	if err := a.Login(ctx); err != nil {
		return nil, err
	}

	if c.Jobplanet != nil && c.Jobplanet.URL != nil {
		zap.L().Debug("jobplanet: using known company page", zap.String("company_id", c.ID))
		data, err := a.company(ctx, *c.Jobplanet.URL)
		if err != nil {
			return nil, err
		}
		if data != nil {
			return data, nil
		}
	}

	for _, q := range identity.Normalize(c.Name).SearchVariants {
		p, err := a.visit(ctx, a.searchURL(q))
		if err != nil {
			return nil, eris.Wrapf(err, "jobplanet: search %q", q)
		}
		if p == nil {
			continue
		}
		doc, err := parseDoc(p)
		if err != nil {
			return nil, err
		}

		cands := searchCandidates(p, doc)
		names := make([]string, len(cands))
		for i, cd := range cands {
			names[i] = cd.Name
		}
		i, kind := a.opts.Policy.Select(c.Name, q, names)
		if i < 0 {
			continue
		}
		zap.L().Debug("jobplanet: search hit",
			zap.String("query", q),
			zap.String("candidate", cands[i].Name),
			zap.Stringer("match", kind),
		)
		return a.company(ctx, cands[i].URL)
	}
	return nil, nil
}

// company extracts the company record from its page and salary tab. A page
// that no longer exists yields nil.
func (a *Adapter) company(ctx context.Context, pageURL string) (*model.JobplanetData, error) {
	p, err := a.visit(ctx, pageURL)
	if err != nil || p == nil {
		return nil, err
	}
	doc, err := parseDoc(p)
	if err != nil {
		return nil, err
	}

	data := &model.JobplanetData{
		Rating:      parseRating(doc),
		ReviewCount: parseReviewCount(p.Title),
		Address:     model.Str(parseAddress(p.Text)),
		URL:         model.Str(p.URL),
	}
	if data.URL == nil {
		data.URL = model.Str(pageURL)
	}

	if link := salaryLink(p, doc); link != "" {
		sp, err := a.visit(ctx, link)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			zap.L().Warn("jobplanet: salary page failed", zap.String("url", link), zap.Error(err))
		case sp != nil:
			data.AvgSalary = parseSalary(sp.Text)
		}
	}
	return data, nil
}

// visit paces and loads one page. A 404 yields nil; other error statuses are
// classified.
func (a *Adapter) visit(ctx context.Context, pageURL string) (*Page, error) {
	if err := a.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	p, err := a.browser.Navigate(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	switch {
	case p.Status == http.StatusNotFound:
		return nil, nil
	case p.Status != 0:
		if err := resilience.CheckStatus("jobplanet", p.Status); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (a *Adapter) searchURL(query string) string {
	return a.baseURL + "/search?" + url.Values{"query": {query}}.Encode()
}
