package domain

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/storm-data-gridder/internal/interpolate"
)

// ValueProperty is the feature property holding an observation's magnitude.
const ValueProperty = "value"

// ObservationsFromFeatures reads point features carrying a numeric "value"
// property. Only the first feature at a given position is kept.
func ObservationsFromFeatures(fc *geojson.FeatureCollection) ([]interpolate.Observation[float64], error) {
	if fc == nil {
		return nil, nil
	}
	seen := make(map[r2.Point]bool, len(fc.Features))
	obs := make([]interpolate.Observation[float64], 0, len(fc.Features))
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: geometry must be a Point", i)
		}
		v, ok := f.Properties[ValueProperty].(float64)
		if !ok {
			return nil, fmt.Errorf("feature %d: missing numeric %q property", i, ValueProperty)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("feature %d: value must be finite", i)
		}

		p := r2.Point{X: pt.Lon(), Y: pt.Lat()}
		if seen[p] {
			continue
		}
		seen[p] = true
		obs = append(obs, interpolate.Observation[float64]{Point: p, Value: v})
	}
	return obs, nil
}

// AnalysisFeatures renders every grid cell of a as a point feature. Cells
// left undetermined carry a null value.
func AnalysisFeatures(a Analysis) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	g := a.Grid
	stepX := cellStep(g.BBox[0], g.BBox[2], g.Cols)
	stepY := cellStep(g.BBox[1], g.BBox[3], g.Rows)

	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			f := geojson.NewFeature(orb.Point{g.BBox[0] + float64(c)*stepX, g.BBox[1] + float64(r)*stepY})
			f.Properties["row"] = r
			f.Properties["col"] = c
			if v := a.Values[r*g.Cols+c]; !math.IsNaN(v) {
				f.Properties[ValueProperty] = v
			} else {
				f.Properties[ValueProperty] = nil
			}
			fc.Append(f)
		}
	}
	fc.BBox = geojson.BBox(g.BBox[:])
	fc.ExtraMembers = geojson.Properties{
		"id":          a.ID,
		"product":     a.Product,
		"method":      a.Method,
		"time_bucket": a.TimeBucket,
	}
	return fc
}

func cellStep(lo, hi float64, n int) float64 {
	if n < 2 {
		return 0
	}
	return (hi - lo) / float64(n-1)
}
