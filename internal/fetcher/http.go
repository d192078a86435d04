package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/byeongteuk/btmap/internal/atomicfile"
	"github.com/byeongteuk/btmap/internal/resilience"
)

// DefaultUserAgent is a desktop browser agent; the registry and Wanted both
// serve reduced pages to unknown clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	Headers      map[string]string
	RateLimiters map[string]*rate.Limiter

	// Retry governs in-fetcher retries of 429/5xx and network errors.
	// MaxAttempts 1 leaves retrying to the caller.
	Retry resilience.RetryConfig
}

// HTTPFetcher implements Fetcher using net/http with per-host rate limiting
// and retry.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	limiters := make(map[string]*rate.Limiter, len(opts.RateLimiters))
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: limiters,
	}
}

// WithClient replaces the underlying http.Client. Used by tests.
func (f *HTTPFetcher) WithClient(c *http.Client) *HTTPFetcher {
	f.client = c
	return f
}

// SetLimiter installs the rate limiter used for host.
func (f *HTTPFetcher) SetLimiter(host string, lim *rate.Limiter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limiters[host] = lim
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(5, 1)
	f.limiters[host] = lim
	return lim
}

// do sends req with rate limiting and retries. The body of a returned
// response has a 2xx status; anything else is converted to an error
// classified by resilience.CheckStatus.
func (f *HTTPFetcher) do(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	for k, v := range f.opts.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	retry := f.opts.Retry
	retry.OnRetry = func(attempt int, err error) {
		zap.L().Warn("http request failed, retrying",
			zap.String("url", req.URL.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	return resilience.DoVal(ctx, retry, func(ctx context.Context) (*http.Response, error) {
		if err := f.limiterFor(req.URL.String()).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		cloned := req.Clone(ctx)
		if body != nil {
			cloned.Body = io.NopCloser(bytes.NewReader(body))
			cloned.ContentLength = int64(len(body))
		}

		resp, err := f.client.Do(cloned)
		if err != nil {
			return nil, eris.Wrapf(err, "%s %s", req.Method, req.URL.Host)
		}
		if resp.StatusCode == http.StatusNotFound {
			_ = resp.Body.Close()
			return nil, eris.Wrapf(ErrNotFound, "%s", req.URL.String())
		}
		if err := resilience.CheckStatus(req.URL.Host, resp.StatusCode); err != nil {
			_ = resp.Body.Close()
			return nil, err
		}
		return resp, nil
	})
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}

	resp, err := f.do(ctx, req, nil)
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	return resp.Body, nil
}

// GetJSON fetches the URL and decodes the JSON body into v.
func (f *HTTPFetcher) GetJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.do(ctx, req, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	// A body that does not decode is usually a truncated or interstitial
	// page, worth another attempt.
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resilience.NewTransientError(eris.Wrapf(err, "decode json from %s", req.URL.Host), resp.StatusCode)
	}
	return nil
}

// PostFormToFile posts form to the URL and streams the response into path.
// The file is written to a temporary name and renamed into place, so a
// failed download never leaves a truncated file behind.
func (f *HTTPFetcher) PostFormToFile(ctx context.Context, rawURL string, form url.Values, path string) (int64, error) {
	encoded := []byte(form.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.do(ctx, req, encoded)
	if err != nil {
		return 0, eris.Wrap(err, "post form")
	}
	defer resp.Body.Close() //nolint:errcheck

	n, err := atomicfile.WriteFrom(path, resp.Body)
	if err != nil {
		return n, eris.Wrap(err, "post form")
	}
	return n, nil
}
