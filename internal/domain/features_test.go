package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-gridder/internal/interpolate"
)

func TestObservationsFromFeatures(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[-97.5,35.2]},"properties":{"value":1.75}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[-97.1,35.6]},"properties":{"value":2}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[-97.5,35.2]},"properties":{"value":9}}
	]}`)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)

	obs, err := ObservationsFromFeatures(fc)
	require.NoError(t, err)

	assert.Equal(t, []interpolate.Observation[float64]{
		{Point: r2.Point{X: -97.5, Y: 35.2}, Value: 1.75},
		{Point: r2.Point{X: -97.1, Y: 35.6}, Value: 2},
	}, obs)
}

func TestObservationsFromFeatures_Invalid(t *testing.T) {
	line := geojson.NewFeature(orb.LineString{{0, 0}, {1, 1}})
	line.Properties[ValueProperty] = 1.0

	noValue := geojson.NewFeature(orb.Point{0, 0})

	textValue := geojson.NewFeature(orb.Point{0, 0})
	textValue.Properties[ValueProperty] = "large"

	nanValue := geojson.NewFeature(orb.Point{0, 0})
	nanValue.Properties[ValueProperty] = math.NaN()

	tests := []struct {
		name    string
		feature *geojson.Feature
		want    string
	}{
		{"not a point", line, "geometry must be a Point"},
		{"missing value", noValue, `missing numeric "value"`},
		{"text value", textValue, `missing numeric "value"`},
		{"nan value", nanValue, "must be finite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := geojson.NewFeatureCollection().Append(tt.feature)
			_, err := ObservationsFromFeatures(fc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestObservationsFromFeatures_Nil(t *testing.T) {
	obs, err := ObservationsFromFeatures(nil)
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestAnalysisFeatures(t *testing.T) {
	a := Analysis{
		ID:         "a-1",
		Product:    "hail-size",
		Method:     "natural_neighbor",
		TimeBucket: time.Date(2024, 4, 26, 15, 0, 0, 0, time.UTC),
		Grid:       GridSpec{Rows: 2, Cols: 3, BBox: [4]float64{-98, 35, -96, 36}, Spacing: 1},
		Values:     Values{1, 2, 3, 4, math.NaN(), 6},
	}

	fc := AnalysisFeatures(a)

	require.Len(t, fc.Features, 6)
	assert.Equal(t, orb.Point{-98, 35}, fc.Features[0].Geometry)
	assert.Equal(t, orb.Point{-97, 36}, fc.Features[4].Geometry)
	assert.Equal(t, orb.Point{-96, 36}, fc.Features[5].Geometry)
	assert.InDelta(t, 2.0, fc.Features[1].Properties[ValueProperty], 0)
	assert.Nil(t, fc.Features[4].Properties[ValueProperty])
	assert.Equal(t, 1, fc.Features[4].Properties["row"])
	assert.Equal(t, 1, fc.Features[4].Properties["col"])

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc["type"])
	assert.Equal(t, "hail-size", doc["product"])
	assert.Equal(t, []any{-98.0, 35.0, -96.0, 36.0}, doc["bbox"])
}
