package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Pacer enforces a minimum interval between requests to one remote host.
// The first request goes through immediately.
type Pacer struct {
	lim *rate.Limiter
}

// NewPacer returns a Pacer allowing one request per interval. A
// non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// Interval converts a millisecond setting to a duration.
func Interval(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Wait blocks until the next request may be sent.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if err := p.lim.Wait(ctx); err != nil {
		return eris.Wrap(err, "pacer: wait")
	}
	return nil
}

// Limiter exposes the underlying limiter, for HTTP clients that pace per
// host themselves.
func (p *Pacer) Limiter() *rate.Limiter {
	return p.lim
}
