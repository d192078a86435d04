// Package geocode resolves Korean addresses and place names to coordinates
// via Naver Maps (address geocoding) and Kakao Local (keyword search).
package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/twpayne/go-geom"
	"golang.org/x/time/rate"
)

// Client geocodes one query.
type Client interface {
	Geocode(ctx context.Context, q Query) (*Result, error)
}

// Query is what a provider looks up. Address-based providers use Address,
// keyword-search providers use Keyword and fall back to Address.
type Query struct {
	Address string
	Keyword string // e.g. "경기 테스트소프트"
}

// Result holds the geocoding output for a query.
type Result struct {
	Lat     float64
	Lng     float64
	Address string // address as normalized by the provider
	Source  string // "naver" or "kakao"
	Matched bool
}

// Option configures a provider.
type Option func(*httpConfig)

type httpConfig struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

func newHTTPConfig(baseURL string, opts []Option) httpConfig {
	c := httpConfig{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpConfig) {
		c.client = hc
	}
}

// WithInterval sets the minimum spacing between requests. Zero disables
// pacing.
func WithInterval(d time.Duration) Option {
	return func(c *httpConfig) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *httpConfig) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// koreaBounds covers South Korea including Jeju, Ulleungdo and Dokdo.
var koreaBounds = geom.NewBounds(geom.XY).Set(124.5, 33.0, 132.0, 38.7)

// InKorea reports whether the point lies inside South Korea's bounding box.
func InKorea(lat, lng float64) bool {
	return koreaBounds.OverlapsPoint(geom.XY, geom.Coord{lng, lat})
}
