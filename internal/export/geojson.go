// Package export writes the merged company list in the formats the map
// front-end and analysts consume.
package export

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/atomicfile"
	"github.com/byeongteuk/btmap/internal/model"
)

// FeatureCollection builds a GeoJSON collection with one point per company
// that has coordinates. Properties carry the company document minus the
// coordinates themselves.
func FeatureCollection(companies []*model.Company) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(companies))}
	var bounds *geom.Bounds

	for _, c := range companies {
		if !c.HasCoordinates() {
			continue
		}
		pt := geom.NewPointFlat(geom.XY, []float64{*c.Lng, *c.Lat})
		if bounds == nil {
			bounds = geom.NewBounds(geom.XY)
		}
		bounds.Extend(pt)

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         c.ID,
			Geometry:   pt,
			Properties: properties(c),
		})
	}
	fc.BBox = bounds
	return fc
}

func properties(c *model.Company) map[string]any {
	p := map[string]any{
		"name":    c.Name,
		"sido":    c.Sido,
		"sigungu": c.Sigungu,
		"address": c.Address,
	}
	if c.MMA != nil {
		p["mma"] = c.MMA
	}
	if c.Jobplanet != nil {
		p["jobplanet"] = c.Jobplanet
	}
	if c.Wanted != nil {
		p["wanted"] = c.Wanted
	}
	return p
}

// WriteGeoJSON writes the companies with coordinates to path and returns the
// number of features written.
func WriteGeoJSON(path string, companies []*model.Company) (int, error) {
	fc := FeatureCollection(companies)
	data, err := json.Marshal(fc)
	if err != nil {
		return 0, eris.Wrap(err, "export: encode geojson")
	}
	if err := atomicfile.Write(path, data); err != nil {
		return 0, eris.Wrapf(err, "export: write %s", path)
	}

	zap.L().Info("export: wrote geojson",
		zap.String("path", path),
		zap.Int("features", len(fc.Features)),
		zap.Int("skipped", len(companies)-len(fc.Features)),
	)
	return len(fc.Features), nil
}
