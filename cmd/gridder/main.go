package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/storm-data-gridder/internal/adapter/http"
	"github.com/couchcryptid/storm-data-gridder/internal/adapter/archive"
	kafkaadapter "github.com/couchcryptid/storm-data-gridder/internal/adapter/kafka"
	"github.com/couchcryptid/storm-data-gridder/internal/analysis"
	"github.com/couchcryptid/storm-data-gridder/internal/config"
	"github.com/couchcryptid/storm-data-gridder/internal/observability"
	"github.com/couchcryptid/storm-data-gridder/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	var analyzer analysis.Analyzer = analysis.NewInterpolator(cfg.AnalysisWorkers, logger, metrics)
	analyzer = analysis.NewCachedAnalyzer(analyzer, cfg.AnalysisCacheBytes, metrics)

	opts := []pipeline.Option{pipeline.WithRetention(cfg.BucketRetention)}

	// Archive is feature-flagged via ARCHIVE_ENABLED.
	if cfg.Archive.Enabled {
		ar, err := archive.New(cfg.Archive, logger, metrics)
		if err != nil {
			logger.Error("failed to create archive client", "error", err)
			os.Exit(1)
		}
		opts = append(opts, pipeline.WithArchiver(ar))
		metrics.ArchiveEnabled.Set(1)
		logger.Info("analysis archive enabled", "endpoint", cfg.Archive.Endpoint, "bucket", cfg.Archive.Bucket)
	} else {
		logger.Info("analysis archive disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(reader, analyzer, writer, cfg.Products, logger, metrics, cfg.BatchSize, opts...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, analyzer, cfg.Products, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start gridding pipeline.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}

	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
