package wanted

import (
	"context"
	"net/http"
	"strings"

	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/resilience"
)

// companyLink is one company card on the search page.
type companyLink struct {
	ID   int64
	Name string
}

// searchHTML looks the company up on the search page, for names the search
// API does not index. Returns the accepted company id, or 0.
func (a *Adapter) searchHTML(ctx context.Context, registryName string, variants []string) (int64, error) {
	for _, q := range variants {
		links, err := a.visitSearchPage(ctx, a.searchPageURL(q))
		if err != nil {
			return 0, eris.Wrapf(err, "wanted: search page %q", q)
		}

		names := make([]string, len(links))
		for i, l := range links {
			names[i] = l.Name
		}
		if i, kind := a.opts.Policy.Select(registryName, q, names); i >= 0 {
			zap.L().Debug("wanted: search page hit",
				zap.String("query", q),
				zap.String("candidate", links[i].Name),
				zap.Stringer("match", kind),
			)
			return links[i].ID, nil
		}
	}
	return 0, nil
}

// visitSearchPage collects the distinct company links of one search page.
func (a *Adapter) visitSearchPage(ctx context.Context, pageURL string) ([]companyLink, error) {
	if err := a.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.UserAgent(a.opts.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(a.opts.Timeout)

	var (
		links    []companyLink
		seen     = make(map[int64]bool)
		notFound bool
		visitErr error
	)
	c.OnHTML("a[href*='/company/']", func(e *colly.HTMLElement) {
		id, ok := CompanyID(e.Attr("href"))
		name := strings.Join(strings.Fields(e.Text), " ")
		if !ok || name == "" || seen[id] {
			return
		}
		seen[id] = true
		links = append(links, companyLink{ID: id, Name: name})
	})
	c.OnError(func(r *colly.Response, err error) {
		switch {
		case r != nil && r.StatusCode == http.StatusNotFound:
			notFound = true
		case r != nil && r.StatusCode != 0:
			visitErr = resilience.CheckStatus("wanted", r.StatusCode)
		default:
			visitErr = resilience.NewTransientError(err, 0)
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		switch {
		case notFound:
			return nil, nil
		case visitErr != nil:
			return nil, visitErr
		case err != nil:
			return nil, resilience.NewTransientError(err, 0)
		}
		return links, nil
	}
}
