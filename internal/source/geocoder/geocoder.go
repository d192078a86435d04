// Package geocoder adapts pkg/geocode to the source protocol. It geocodes
// the company address as it stands after address priority has been
// applied, and records that address with the coordinates.
package geocoder

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/identity"
	"github.com/byeongteuk/btmap/internal/model"
	"github.com/byeongteuk/btmap/internal/progress"
	"github.com/byeongteuk/btmap/pkg/geocode"
)

// Adapter implements source.Adapter for geocoding.
type Adapter struct {
	client geocode.Client
}

// New returns an Adapter over client.
func New(client geocode.Client) *Adapter {
	return &Adapter{client: client}
}

// Name implements source.Adapter.
func (a *Adapter) Name() model.Source { return model.SourceGeocode }

// Resolve implements source.Adapter. Companies without an address are a
// miss.
func (a *Adapter) Resolve(ctx context.Context, c *model.Company) (any, error) {
	addr := strings.TrimSpace(model.Deref(c.Address))
	if addr == "" {
		return nil, nil
	}

	r, err := a.client.Geocode(ctx, geocode.Query{Address: addr, Keyword: Keyword(c)})
	if err != nil {
		return nil, err
	}
	if r == nil || !r.Matched {
		return nil, nil
	}

	lat, lng := r.Lat, r.Lng
	return &model.GeocodeData{
		Lat:     &lat,
		Lng:     &lng,
		Address: addr,
		Source:  r.Source,
	}, nil
}

// Keyword is the place-search query for c: province plus core name, e.g.
// "경기 테스트소프트".
func Keyword(c *model.Company) string {
	core := identity.Normalize(c.Name).Core
	return strings.TrimSpace(model.Deref(c.Sido) + " " + core)
}

// Eligible returns the companies that have an address to geocode.
func Eligible(companies []*model.Company) []*model.Company {
	out := make([]*model.Company, 0, len(companies))
	for _, c := range companies {
		if strings.TrimSpace(model.Deref(c.Address)) != "" {
			out = append(out, c)
		}
	}
	return out
}

// ForgetStale drops geocode entries recorded for an address other than the
// company's current one, so the next run geocodes the new address. Returns
// the number of entries dropped.
func ForgetStale(ctx context.Context, t *progress.Tracker, companies []*model.Company) (int, error) {
	n := 0
	for _, c := range companies {
		var g model.GeocodeData
		ok, err := t.Decode(c.ID, &g)
		if err != nil {
			zap.L().Warn("geocoder: unreadable entry dropped", zap.String("company_id", c.ID), zap.Error(err))
		} else if !ok || g.Address == "" || g.Address == model.Deref(c.Address) {
			continue
		}

		if err := t.Forget(ctx, c.ID); err != nil {
			return n, eris.Wrapf(err, "geocoder: forget %s", c.ID)
		}
		n++
		zap.L().Debug("geocoder: address changed, will geocode again",
			zap.String("company_id", c.ID),
			zap.String("recorded", g.Address),
			zap.String("current", model.Deref(c.Address)),
		)
	}
	if n > 0 {
		zap.L().Info("geocoder: dropped stale entries", zap.Int("count", n))
	}
	return n, nil
}
