package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-gridder/internal/analysis"
	"github.com/couchcryptid/storm-data-gridder/internal/config"
	"github.com/couchcryptid/storm-data-gridder/internal/observability"
)

const hailCSV = `Time,Size,Location,County,State,Lat,Lon,Comments
1510,125,8 ESE Chappel,San Saba,TX,31.02,-98.44,(SJT)
1520,175,Lampasas,Lampasas,TX,31.06,-98.18,(FWD)
1530,100,Goldthwaite,Mills,TX,31.45,-98.57,(FWD)
1540,200,Hamilton,Hamilton,TX,31.70,-98.12,(FWD)
1610,150,Gatesville,Coryell,TX,31.43,-97.74,(FWD)
`

var day = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

func newAnalyzer() analysis.Analyzer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return analysis.NewInterpolator(2, logger, observability.NewMetricsForTesting())
}

func TestReadRecords(t *testing.T) {
	recs, err := readRecords(strings.NewReader(hailCSV), "hail")
	require.NoError(t, err)

	require.Len(t, recs, 5)
	assert.Equal(t, "1510", recs[0].Time)
	assert.Equal(t, "125", recs[0].Size)
	assert.Empty(t, recs[0].Speed)
	assert.Equal(t, "hail", recs[0].Type)
	assert.Equal(t, "-98.44", recs[0].Lon)
}

func TestReadRecords_WindColumn(t *testing.T) {
	in := "Time,Speed,Location,County,State,Lat,Lon,Comments\n1500,UNK,A,B,OK,35.1,-97.2,x\n1505,65,A,B,OK\n"

	recs, err := readRecords(strings.NewReader(in), "wind")
	require.NoError(t, err)

	require.Len(t, recs, 1, "short rows are skipped")
	assert.Equal(t, "UNK", recs[0].Speed)
}

func TestReadRecords_Errors(t *testing.T) {
	_, err := readRecords(strings.NewReader(hailCSV), "hurricane")
	require.Error(t, err)

	_, err = readRecords(strings.NewReader("Time,Size\n"), "hail")
	require.Error(t, err)
}

func TestSelectProduct(t *testing.T) {
	products := config.DefaultProducts()

	p, err := selectProduct(products, "", "wind")
	require.NoError(t, err)
	assert.Equal(t, "wind-speed", p.Name)

	p, err = selectProduct(products, "tornado-rating", "tornado")
	require.NoError(t, err)
	assert.Equal(t, config.MethodBarnes, p.Method)

	_, err = selectProduct(products, "missing", "hail")
	require.Error(t, err)

	_, err = selectProduct(products, "hail-size", "wind")
	require.Error(t, err)
}

func TestGridRecords(t *testing.T) {
	recs, err := readRecords(strings.NewReader(hailCSV), "hail")
	require.NoError(t, err)
	product, _ := config.ProductByName(config.DefaultProducts(), "hail-size")

	analyses, err := gridRecords(context.Background(), newAnalyzer(), product, recs, day)
	require.NoError(t, err)

	// The 16Z bucket has a single report and is skipped.
	require.Len(t, analyses, 1)
	a := analyses[0]
	assert.Equal(t, "hail-size", a.Product)
	assert.Equal(t, time.Date(2024, time.April, 26, 15, 0, 0, 0, time.UTC), a.TimeBucket)
	assert.Equal(t, 4, a.Observations)
	assert.Len(t, a.Values, a.Grid.Rows*a.Grid.Cols)
}

func TestGridRecords_Cancelled(t *testing.T) {
	recs, err := readRecords(strings.NewReader(hailCSV), "hail")
	require.NoError(t, err)
	product, _ := config.ProductByName(config.DefaultProducts(), "hail-size")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = gridRecords(ctx, newAnalyzer(), product, recs, day)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWriteAnalyses(t *testing.T) {
	recs, err := readRecords(strings.NewReader(hailCSV), "hail")
	require.NoError(t, err)
	product, _ := config.ProductByName(config.DefaultProducts(), "hail-size")
	analyses, err := gridRecords(context.Background(), newAnalyzer(), product, recs, day)
	require.NoError(t, err)

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeAnalyses(&buf, analyses, "json"))

		var got []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "hail-size", got[0]["product"])
	})

	t.Run("geojson", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeAnalyses(&buf, analyses, "geojson"))

		var got []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "FeatureCollection", got[0]["type"])
		features, ok := got[0]["features"].([]any)
		require.True(t, ok)
		assert.Len(t, features, len(analyses[0].Values))
	})
}
