package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-gridder/internal/analysis"
	"github.com/couchcryptid/storm-data-gridder/internal/config"
	"github.com/couchcryptid/storm-data-gridder/internal/domain"
	"github.com/couchcryptid/storm-data-gridder/internal/interpolate"
	"github.com/couchcryptid/storm-data-gridder/internal/observability"
	"github.com/couchcryptid/storm-data-gridder/internal/pipeline"
)

var hour15 = time.Date(2024, time.April, 26, 15, 0, 0, 0, time.UTC)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawEvent
	next    int
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	if m.next >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	b := m.batches[m.next]
	m.next++
	return b, nil
}

type analyzeCall struct {
	product string
	bucket  time.Time
	obs     int
}

type mockAnalyzer struct {
	calls []analyzeCall
	err   error
}

func (m *mockAnalyzer) Analyze(_ context.Context, product config.Product, bucket time.Time, obs []interpolate.Observation[float64]) (domain.Analysis, error) {
	m.calls = append(m.calls, analyzeCall{product: product.Name, bucket: bucket, obs: len(obs)})
	if m.err != nil {
		return domain.Analysis{}, m.err
	}
	return domain.Analysis{
		ID:           fmt.Sprintf("%s-%d", product.Name, len(m.calls)),
		Product:      product.Name,
		EventType:    product.EventType,
		Method:       product.Method,
		TimeBucket:   bucket,
		Observations: len(obs),
	}, nil
}

type mockLoader struct {
	loaded   []domain.OutputEvent
	failures int
	attempts int
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	m.attempts++
	if m.failures > 0 {
		m.failures--
		return errors.New("broker unavailable")
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

type mockArchiver struct {
	archived []string
	err      error
}

func (m *mockArchiver) Archive(_ context.Context, a domain.Analysis) error {
	m.archived = append(m.archived, a.ID)
	return m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(ext pipeline.BatchExtractor, a pipeline.Analyzer, l pipeline.BatchLoader, opts ...pipeline.Option) *pipeline.Pipeline {
	return pipeline.New(ext, a, l, config.DefaultProducts(), discardLogger(), observability.NewMetricsForTesting(), 50, opts...)
}

func run(t *testing.T, p *pipeline.Pipeline, timeout time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{
		makeRawEvent(t, "h1", "hail", 35.0, -97.0, 1.0, hour15.Add(5*time.Minute)),
		makeRawEvent(t, "h2", "hail", 35.5, -97.5, 1.5, hour15.Add(10*time.Minute)),
		makeRawEvent(t, "h3", "hail", 35.2, -96.8, 2.0, hour15.Add(20*time.Minute)),
	}}}
	az := &mockAnalyzer{}
	ldr := &mockLoader{}

	p := newPipeline(ext, az, ldr)
	run(t, p, 500*time.Millisecond)

	require.Len(t, az.calls, 1)
	assert.Equal(t, analyzeCall{product: "hail-size", bucket: hour15, obs: 3}, az.calls[0])

	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, []byte("hail-size|2024-04-26T15:00:00Z"), ldr.loaded[0].Key)
	assert.Equal(t, "natural_neighbor", ldr.loaded[0].Headers["method"])
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_AccumulatesAcrossBatches(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{
		{
			makeRawEvent(t, "h1", "hail", 35.0, -97.0, 1.0, hour15),
			makeRawEvent(t, "h2", "hail", 35.5, -97.5, 1.5, hour15),
		},
		{
			makeRawEvent(t, "h3", "hail", 35.2, -96.8, 2.0, hour15.Add(30*time.Minute)),
		},
	}}
	az := &mockAnalyzer{}
	ldr := &mockLoader{}

	run(t, newPipeline(ext, az, ldr), 500*time.Millisecond)

	require.Len(t, az.calls, 2)
	assert.Equal(t, 2, az.calls[0].obs)
	assert.Equal(t, 3, az.calls[1].obs, "second analysis covers the whole bucket")
	assert.Len(t, ldr.loaded, 2)
}

func TestPipeline_Run_DuplicatesDoNotReanalyze(t *testing.T) {
	first := makeRawEvent(t, "h1", "hail", 35.0, -97.0, 1.0, hour15)
	commits := 0
	dup := first
	dup.Commit = func(context.Context) error { commits++; return nil }

	ext := &mockExtractor{batches: [][]domain.RawEvent{{first}, {dup}}}
	az := &mockAnalyzer{}
	ldr := &mockLoader{}

	run(t, newPipeline(ext, az, ldr), 500*time.Millisecond)

	assert.Len(t, az.calls, 1)
	assert.Equal(t, 1, commits, "duplicates are still committed")
}

func TestPipeline_Run_OnlyTouchedProducts(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{
		makeRawEvent(t, "w1", "wind", 35.0, -97.0, 60, hour15),
		makeRawEvent(t, "t1", "tornado", 34.0, -96.0, 2, hour15.Add(-3*time.Hour)),
	}}}
	az := &mockAnalyzer{}

	run(t, newPipeline(ext, az, &mockLoader{}), 500*time.Millisecond)

	require.Len(t, az.calls, 2)
	// Buckets are analyzed oldest first.
	assert.Equal(t, "tornado-rating", az.calls[0].product)
	assert.Equal(t, hour15.Add(-3*time.Hour), az.calls[0].bucket)
	assert.Equal(t, "wind-speed", az.calls[1].product)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := newPipeline(&mockExtractor{}, &mockAnalyzer{}, ldr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ParseError(t *testing.T) {
	committed := false
	bad := domain.RawEvent{Key: []byte("bad"), Value: []byte("not json")}
	bad.Commit = func(context.Context) error { committed = true; return nil }

	ext := &mockExtractor{batches: [][]domain.RawEvent{{
		bad,
		makeRawEvent(t, "h1", "hail", 35.0, -97.0, 1.0, hour15),
	}}}
	az := &mockAnalyzer{}
	ldr := &mockLoader{}

	p := newPipeline(ext, az, ldr)
	run(t, p, 500*time.Millisecond)

	assert.True(t, committed, "poison messages are committed")
	require.Len(t, az.calls, 1)
	assert.Equal(t, 1, az.calls[0].obs)
	assert.Len(t, ldr.loaded, 1)
}

func TestPipeline_Run_NotEnoughObservationsSkipped(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{
		makeRawEvent(t, "h1", "hail", 35.0, -97.0, 1.0, hour15),
	}}}
	az := &mockAnalyzer{err: fmt.Errorf("%w: hail-size has 1", analysis.ErrNotEnoughObservations)}
	ldr := &mockLoader{}

	p := newPipeline(ext, az, ldr)
	run(t, p, 500*time.Millisecond)

	assert.Zero(t, ldr.attempts)
	assert.NoError(t, p.CheckReadiness(context.Background()), "a batch with nothing to publish still counts")
}

func TestPipeline_Run_AnalysisErrorSkipped(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{
		makeRawEvent(t, "h1", "hail", 35.0, -97.0, 1.0, hour15),
	}}}
	ldr := &mockLoader{}

	run(t, newPipeline(ext, &mockAnalyzer{err: interpolate.ErrInvalidConfig}, ldr), 500*time.Millisecond)

	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_LoadRetriesBeforeCommit(t *testing.T) {
	var order []string
	raw := makeRawEvent(t, "h1", "hail", 35.0, -97.0, 1.0, hour15)
	raw.Commit = func(context.Context) error {
		order = append(order, "commit")
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{failures: 2}

	run(t, newPipeline(ext, &mockAnalyzer{}, ldr), 2*time.Second)

	assert.Equal(t, 3, ldr.attempts)
	assert.Len(t, ldr.loaded, 1)
	assert.Equal(t, []string{"commit"}, order)
}

func TestPipeline_Run_LoadFailureNoCommitOnShutdown(t *testing.T) {
	committed := false
	raw := makeRawEvent(t, "h1", "hail", 35.0, -97.0, 1.0, hour15)
	raw.Commit = func(context.Context) error { committed = true; return nil }

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{failures: 1000}

	p := newPipeline(ext, &mockAnalyzer{}, ldr)
	run(t, p, 300*time.Millisecond)

	assert.False(t, committed)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_Archives(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{
		makeRawEvent(t, "h1", "hail", 35.0, -97.0, 1.0, hour15),
		makeRawEvent(t, "w1", "wind", 35.0, -97.0, 70, hour15),
	}}}
	ar := &mockArchiver{err: errors.New("bucket missing")}
	ldr := &mockLoader{}

	run(t, newPipeline(ext, &mockAnalyzer{}, ldr, pipeline.WithArchiver(ar)), 500*time.Millisecond)

	assert.Len(t, ar.archived, 2)
	assert.Len(t, ldr.loaded, 2, "archive failures do not block loading")
}

func TestPipeline_Run_RetentionDropsLateReports(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{
		{makeRawEvent(t, "h1", "hail", 35.0, -97.0, 1.0, hour15)},
		{makeRawEvent(t, "h0", "hail", 36.0, -98.0, 1.0, hour15.Add(-2*time.Hour))},
	}}
	az := &mockAnalyzer{}

	run(t, newPipeline(ext, az, &mockLoader{}, pipeline.WithRetention(time.Hour)), 500*time.Millisecond)

	require.Len(t, az.calls, 1)
	assert.Equal(t, hour15, az.calls[0].bucket)
}

// --- helpers ---

func makeRawEvent(t *testing.T, id, eventType string, lat, lon, magnitude float64, at time.Time) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(domain.StormEvent{
		ID:          id,
		EventType:   eventType,
		Geo:         domain.Geo{Lat: lat, Lon: lon},
		Measurement: domain.Measurement{Magnitude: magnitude},
		EventTime:   at,
	})
	require.NoError(t, err)
	return domain.RawEvent{
		Key:   []byte(id),
		Value: data,
		Topic: "transformed-weather-data",
	}
}
