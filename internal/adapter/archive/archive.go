// Package archive stores a JSON copy of every published analysis in an
// S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/couchcryptid/storm-data-gridder/internal/config"
	"github.com/couchcryptid/storm-data-gridder/internal/domain"
	"github.com/couchcryptid/storm-data-gridder/internal/observability"
)

// objectStore is the subset of *minio.Client the archiver uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Archiver uploads analyses to object storage.
// It implements pipeline.Archiver.
type Archiver struct {
	store   objectStore
	bucket  string
	logger  *slog.Logger
	metrics *observability.Metrics

	mu          sync.Mutex
	bucketReady bool
}

// New connects to the configured endpoint. The bucket is created on first use.
func New(cfg config.ArchiveConfig, logger *slog.Logger, metrics *observability.Metrics) (*Archiver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("archive client: %w", err)
	}
	return newArchiver(client, cfg.Bucket, logger, metrics), nil
}

func newArchiver(store objectStore, bucket string, logger *slog.Logger, metrics *observability.Metrics) *Archiver {
	return &Archiver{store: store, bucket: bucket, logger: logger, metrics: metrics}
}

// Archive writes a as JSON under ObjectKey(a).
func (ar *Archiver) Archive(ctx context.Context, a domain.Analysis) error {
	if err := ar.archive(ctx, a); err != nil {
		ar.metrics.ArchiveWrites.WithLabelValues("error").Inc()
		return err
	}
	ar.metrics.ArchiveWrites.WithLabelValues("success").Inc()
	return nil
}

func (ar *Archiver) archive(ctx context.Context, a domain.Analysis) error {
	if err := ar.ensureBucket(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode analysis %s: %w", a.ID, err)
	}

	key := ObjectKey(a)
	_, err = ar.store.PutObject(ctx, ar.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"product":     a.Product,
			"method":      a.Method,
			"time-bucket": a.TimeBucket.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", ar.bucket, key, err)
	}
	ar.logger.Debug("analysis archived", "bucket", ar.bucket, "key", key)
	return nil
}

// ensureBucket creates the bucket once. A failed attempt is retried on the
// next call.
func (ar *Archiver) ensureBucket(ctx context.Context) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	if ar.bucketReady {
		return nil
	}

	exists, err := ar.store.BucketExists(ctx, ar.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", ar.bucket, err)
	}
	if !exists {
		if err := ar.store.MakeBucket(ctx, ar.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", ar.bucket, err)
		}
		ar.logger.Info("archive bucket created", "bucket", ar.bucket)
	}
	ar.bucketReady = true
	return nil
}

// ObjectKey lays analyses out as analyses/<product>/<yyyy>/<mm>/<dd>/<hh>/<id>.json.
func ObjectKey(a domain.Analysis) string {
	return path.Join("analyses", a.Product, a.TimeBucket.UTC().Format("2006/01/02/15"), a.ID+".json")
}
