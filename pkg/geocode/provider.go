package geocode

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/resilience"
)

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, q Query) (*Result, error)
	Available() bool
}

// CascadeClient tries geocode providers in order until one matches.
type CascadeClient struct {
	providers []Provider
}

// NewCascadeClient creates a CascadeClient that tries providers in order.
// Unavailable providers (no credentials) are skipped.
func NewCascadeClient(providers ...Provider) *CascadeClient {
	return &CascadeClient{providers: providers}
}

// Providers returns the names of the available providers, in order.
func (c *CascadeClient) Providers() []string {
	var names []string
	for _, p := range c.providers {
		if p.Available() {
			names = append(names, p.Name())
		}
	}
	return names
}

// Geocode implements Client. A result outside South Korea counts as no
// match. A provider error does not stop the cascade, but when no provider
// matches the last error is returned so the caller can retry instead of
// recording a miss. Permanent errors and cancellation return immediately.
func (c *CascadeClient) Geocode(ctx context.Context, q Query) (*Result, error) {
	var lastErr error
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		result, err := p.Geocode(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if resilience.IsPermanent(err) {
				return nil, eris.Wrapf(err, "geocode: %s", p.Name())
			}
			zap.L().Debug("cascade: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			lastErr = eris.Wrapf(err, "geocode: %s", p.Name())
			continue
		}
		if result == nil || !result.Matched {
			continue
		}
		if !InKorea(result.Lat, result.Lng) {
			zap.L().Warn("cascade: result outside Korea ignored",
				zap.String("provider", p.Name()),
				zap.Float64("lat", result.Lat),
				zap.Float64("lng", result.Lng),
			)
			continue
		}
		return result, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return &Result{Matched: false, Source: "cascade"}, nil
}
