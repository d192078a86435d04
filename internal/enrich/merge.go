// Package enrich folds the per-source progress results into the company
// list and resolves which address each company ends up with.
package enrich

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/model"
	"github.com/byeongteuk/btmap/internal/progress"
	"github.com/byeongteuk/btmap/internal/registry"
)

// Merger holds one progress tracker per enrichment source. A source without
// a tracker is skipped.
type Merger struct {
	trackers map[model.Source]*progress.Tracker
}

// NewMerger returns a Merger over the given trackers, keyed by source.
func NewMerger(trackers map[model.Source]*progress.Tracker) *Merger {
	return &Merger{trackers: trackers}
}

// Summary counts the merged dataset's coverage.
type Summary struct {
	Total         int
	WithJobplanet int // companies with a Jobplanet rating
	WithWanted    int
	WithCoords    int
	Hiring        int
	StaleCoords   int // coordinates dropped because the address changed
}

// Percent returns n as a percentage of Total.
func (s Summary) Percent(n int) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(n) / float64(s.Total) * 100
}

// EnrichAll runs the full merge in its fixed order: registry, Jobplanet,
// Wanted, address priority, then geocode. Geocoding must see the final
// address, so it always comes last.
func (m *Merger) EnrichAll(companies []*model.Company) Summary {
	m.MergeSource(companies, model.SourceRegistry)
	m.MergeSource(companies, model.SourceJobplanet)
	m.MergeSource(companies, model.SourceWanted)
	ApplyAddressPriority(companies)
	_, stale := m.mergeGeocode(companies)

	s := Summarize(companies)
	s.StaleCoords = stale
	zap.L().Info("enrich: merge complete",
		zap.Int("total", s.Total),
		zap.Int("jobplanet", s.WithJobplanet),
		zap.String("jobplanet_pct", pct(s, s.WithJobplanet)),
		zap.Int("wanted", s.WithWanted),
		zap.String("wanted_pct", pct(s, s.WithWanted)),
		zap.Int("coords", s.WithCoords),
		zap.String("coords_pct", pct(s, s.WithCoords)),
		zap.Int("hiring", s.Hiring),
		zap.Int("stale_coords", s.StaleCoords),
	)
	return s
}

// MergeSource folds one source into companies and returns how many were
// updated. Nested records are replaced wholesale by a freshly decoded one;
// empty results leave the company untouched.
func (m *Merger) MergeSource(companies []*model.Company, src model.Source) int {
	switch src {
	case model.SourceRegistry:
		return MergeRegistry(companies)
	case model.SourceGeocode:
		n, _ := m.mergeGeocode(companies)
		return n
	}

	t := m.trackers[src]
	if t == nil {
		return 0
	}

	n := 0
	for _, c := range companies {
		switch src {
		case model.SourceJobplanet:
			var d model.JobplanetData
			if decode(t, c.ID, &d) {
				c.Jobplanet = &d
				n++
			}
		case model.SourceWanted:
			var d model.WantedData
			if decode(t, c.ID, &d) {
				if d.Jobs == nil {
					d.Jobs = []model.WantedJob{}
				}
				c.Wanted = &d
				n++
			}
		}
	}
	zap.L().Debug("enrich: merged source", zap.String("source", string(src)), zap.Int("updated", n))
	return n
}

// MergeRegistry rebases each company's address and region on its registry
// record, so that a re-run of address priority starts from the registry
// value rather than from last run's winner.
func MergeRegistry(companies []*model.Company) int {
	n := 0
	for _, c := range companies {
		if c.MMA == nil || c.MMA.Address == nil {
			continue
		}
		setAddress(c, *c.MMA.Address)
		n++
	}
	return n
}

// ApplyAddressPriority picks each company's address in increasing priority:
// registry (current address), then Jobplanet, then Wanted. The region is
// re-derived from the winning address.
func ApplyAddressPriority(companies []*model.Company) {
	for _, c := range companies {
		address := model.Deref(c.Address)
		if c.Jobplanet != nil && nonBlank(c.Jobplanet.Address) {
			address = *c.Jobplanet.Address
		}
		if c.Wanted != nil && nonBlank(c.Wanted.Address) {
			address = *c.Wanted.Address
		}
		if address != model.Deref(c.Address) {
			setAddress(c, address)
		}
	}
}

// mergeGeocode applies coordinates recorded for the company's current
// address. Entries that predate address recording are applied. A company
// without a matching entry ends up without coordinates: whatever it carried
// belonged to an earlier address, or to a lookup that was since forgotten.
// Cleared coordinates are counted as stale.
func (m *Merger) mergeGeocode(companies []*model.Company) (applied, stale int) {
	t := m.trackers[model.SourceGeocode]
	if t == nil {
		return 0, 0
	}
	for _, c := range companies {
		var g model.GeocodeData
		found := decode(t, c.ID, &g) && g.Lat != nil && g.Lng != nil
		if found && (g.Address == "" || g.Address == model.Deref(c.Address)) {
			lat, lng := *g.Lat, *g.Lng
			c.Lat, c.Lng = &lat, &lng
			applied++
			continue
		}
		if found || c.HasCoordinates() {
			stale++
		}
		c.Lat, c.Lng = nil, nil
	}
	if stale > 0 {
		zap.L().Warn("enrich: stale coordinates cleared, run geocode again", zap.Int("count", stale))
	}
	return applied, stale
}

// Summarize counts coverage over companies.
func Summarize(companies []*model.Company) Summary {
	s := Summary{Total: len(companies)}
	for _, c := range companies {
		if c.Jobplanet != nil && c.Jobplanet.Rating != nil {
			s.WithJobplanet++
		}
		if c.Wanted != nil {
			s.WithWanted++
			if c.Wanted.IsHiring {
				s.Hiring++
			}
		}
		if c.HasCoordinates() {
			s.WithCoords++
		}
	}
	return s
}

func decode(t *progress.Tracker, id string, v any) bool {
	ok, err := t.Decode(id, v)
	if err != nil {
		zap.L().Warn("enrich: skipping unreadable result",
			zap.String("source", t.Source()),
			zap.String("company_id", id),
			zap.Error(err),
		)
		return false
	}
	return ok
}

func setAddress(c *model.Company, address string) {
	c.Address = model.Str(strings.TrimSpace(address))
	sido, sigungu := registry.Region(address)
	if sido == "" {
		return
	}
	if sido != model.Deref(c.Sido) || sigungu != "" {
		c.Sigungu = model.Str(sigungu)
	}
	c.Sido = model.Str(sido)
}

func nonBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func pct(s Summary, n int) string {
	return fmt.Sprintf("%.1f%%", s.Percent(n))
}
