package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Analysis settings.
	AnalysisWorkers    int
	AnalysisCacheBytes int64
	Products           []Product

	// BucketRetention is how long a time bucket keeps accepting late reports.
	BucketRetention time.Duration

	Archive ArchiveConfig
}

// ArchiveConfig describes the optional object store that receives a copy of
// every analysis.
type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	workers, err := parsePositiveInt("ANALYSIS_WORKERS", runtime.GOMAXPROCS(0))
	if err != nil {
		return nil, err
	}

	cacheMB, err := parsePositiveInt("ANALYSIS_CACHE_MB", 64)
	if err != nil {
		return nil, err
	}

	retention, err := parseRetention()
	if err != nil {
		return nil, err
	}

	products := DefaultProducts()
	if path := os.Getenv("PRODUCTS_FILE"); path != "" {
		products, err = LoadProducts(path)
		if err != nil {
			return nil, err
		}
	}

	archive, err := loadArchive()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "transformed-weather-data"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "gridded-weather-analyses"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "storm-data-gridder"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		AnalysisWorkers:    workers,
		AnalysisCacheBytes: int64(cacheMB) << 20,
		Products:           products,
		BucketRetention:    retention,
		Archive:            archive,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}

	return cfg, nil
}

func loadArchive() (ArchiveConfig, error) {
	a := ArchiveConfig{
		Enabled:   os.Getenv("ARCHIVE_ENABLED") == "true",
		Endpoint:  os.Getenv("ARCHIVE_ENDPOINT"),
		Bucket:    sharedcfg.EnvOrDefault("ARCHIVE_BUCKET", "storm-analyses"),
		AccessKey: os.Getenv("ARCHIVE_ACCESS_KEY"),
		SecretKey: os.Getenv("ARCHIVE_SECRET_KEY"),
		UseSSL:    os.Getenv("ARCHIVE_USE_SSL") == "true",
	}
	if !a.Enabled {
		return a, nil
	}
	if a.Endpoint == "" {
		return a, errors.New("ARCHIVE_ENABLED is true but ARCHIVE_ENDPOINT is not set")
	}
	if a.AccessKey == "" || a.SecretKey == "" {
		return a, errors.New("ARCHIVE_ENABLED is true but ARCHIVE_ACCESS_KEY or ARCHIVE_SECRET_KEY is not set")
	}
	return a, nil
}

func parseRetention() (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault("BUCKET_RETENTION", "24h"))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid BUCKET_RETENTION: must be a positive duration")
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}
