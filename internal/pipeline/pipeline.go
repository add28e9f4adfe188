package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/storm-data-gridder/internal/analysis"
	"github.com/couchcryptid/storm-data-gridder/internal/config"
	"github.com/couchcryptid/storm-data-gridder/internal/domain"
	"github.com/couchcryptid/storm-data-gridder/internal/interpolate"
	"github.com/couchcryptid/storm-data-gridder/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Analyzer grids one product's observations for a time bucket.
type Analyzer interface {
	Analyze(ctx context.Context, product config.Product, bucket time.Time, obs []interpolate.Observation[float64]) (domain.Analysis, error)
}

// BatchLoader writes multiple output events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// Archiver keeps a durable copy of an analysis.
type Archiver interface {
	Archive(ctx context.Context, a domain.Analysis) error
}

// Pipeline orchestrates the extract-analyze-load loop.
type Pipeline struct {
	extractor BatchExtractor
	analyzer  Analyzer
	loader    BatchLoader
	archiver  Archiver
	products  []config.Product
	window    *Window
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// Option configures optional pipeline stages.
type Option func(*Pipeline)

// WithArchiver copies every loaded analysis to ar.
func WithArchiver(ar Archiver) Option {
	return func(p *Pipeline) { p.archiver = ar }
}

// WithRetention sets how long time buckets stay open for late reports.
func WithRetention(d time.Duration) Option {
	return func(p *Pipeline) { p.window = NewWindow(d) }
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, a Analyzer, l BatchLoader, products []config.Product, logger *slog.Logger, metrics *observability.Metrics, batchSize int, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: e,
		analyzer:  a,
		loader:    l,
		products:  products,
		window:    NewWindow(24 * time.Hour),
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil if the pipeline has processed at least one batch,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize, "products", len(p.products))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-analyze-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	changed := p.accumulate(rawBatch)

	analyses, ok := p.analyze(ctx, changed)
	if !ok {
		return false
	}

	if !p.load(ctx, analyses, backoff, maxBackoff) {
		return false
	}

	for _, raw := range rawBatch {
		p.commitOffset(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	return true
}

// accumulate parses the batch into the window and returns the buckets and
// event types that gained reports.
func (p *Pipeline) accumulate(rawBatch []domain.RawEvent) touched {
	changed := make(touched)
	for _, raw := range rawBatch {
		event, err := domain.ParseStormEvent(raw)
		if err != nil {
			p.logger.Warn("parse failed, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.ParseErrors.Inc()
			continue
		}

		switch p.window.Add(event) {
		case added:
			changed.mark(event)
		case late:
			p.logger.Debug("report outside retention, skipping",
				"id", event.ID, "time_bucket", event.TimeBucket)
			p.metrics.LateEvents.Inc()
		case duplicate:
		}
	}

	if n := p.window.Expire(); n > 0 {
		p.logger.Debug("expired time buckets", "count", n)
	}
	p.metrics.WindowBuckets.Set(float64(p.window.Len()))
	return changed
}

// analyze recomputes every product fed by the changed buckets. Analyses that
// fail are logged and skipped. Returns false if the pipeline should stop.
func (p *Pipeline) analyze(ctx context.Context, changed touched) ([]domain.Analysis, bool) {
	var out []domain.Analysis
	for _, bucket := range changed.sorted() {
		events := p.window.Events(bucket)
		if len(events) == 0 {
			continue
		}
		for _, product := range p.products {
			if !changed[bucket][product.EventType] {
				continue
			}

			obs := domain.ObservationsFromEvents(events, product.EventType)
			a, err := p.analyzer.Analyze(ctx, product, bucket, obs)
			if err != nil {
				if ctx.Err() != nil {
					return nil, false
				}
				if errors.Is(err, analysis.ErrNotEnoughObservations) {
					p.logger.Debug("skipping analysis", "product", product.Name, "time_bucket", bucket, "observations", len(obs))
					continue
				}
				p.logger.Warn("analysis failed, skipping",
					"error", err,
					"product", product.Name,
					"time_bucket", bucket,
				)
				p.metrics.AnalysisErrors.WithLabelValues(product.Name).Inc()
				continue
			}
			out = append(out, a)
		}
	}
	return out, true
}

// load publishes the analyses, retrying with backoff until the loader
// accepts them, then archives them. Returns false if the pipeline should stop.
func (p *Pipeline) load(ctx context.Context, analyses []domain.Analysis, backoff *time.Duration, maxBackoff time.Duration) bool {
	if len(analyses) == 0 {
		return true
	}

	outBatch := make([]domain.OutputEvent, 0, len(analyses))
	for _, a := range analyses {
		out, err := domain.SerializeAnalysis(a)
		if err != nil {
			p.logger.Warn("serialize failed, skipping analysis", "error", err, "product", a.Product)
			continue
		}
		outBatch = append(outBatch, out)
	}

	for {
		err := p.loader.LoadBatch(ctx, outBatch)
		if err == nil {
			break
		}
		p.logger.Error("load batch failed", "error", err, "batch_size", len(outBatch))
		if !p.backoffOrStop(ctx, backoff, maxBackoff) {
			return false
		}
	}
	*backoff = 200 * time.Millisecond
	p.metrics.AnalysesProduced.Add(float64(len(outBatch)))

	if p.archiver == nil {
		return true
	}
	for _, a := range analyses {
		if err := p.archiver.Archive(ctx, a); err != nil {
			p.logger.Warn("archive failed", "error", err, "id", a.ID, "product", a.Product)
		}
	}
	return true
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
