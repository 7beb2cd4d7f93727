package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	CaseStudyPath string
	GridPath      string

	PipelineEnabled  bool
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

	// Remote window source; empty URL serves windows from the local grid.
	DataServiceURL     string
	DataServiceTimeout time.Duration
	WindowCacheSize    int

	// Path generation.
	RadarAnchorRadiusKm float64
	AnchorIntervalKm    float64
	BirdsPerPath        float64
	PathSeed            string
	FrameWorkers        int
	MaxSessions         int
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

	dataServiceTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("DATA_SERVICE_TIMEOUT", "5s"))
	if err != nil || dataServiceTimeout <= 0 {
		return nil, errors.New("invalid DATA_SERVICE_TIMEOUT")
	}

	radius, err := parsePositiveFloat("RADAR_ANCHOR_RADIUS_KM", 75)
	if err != nil {
		return nil, err
	}
	interval, err := parsePositiveFloat("ANCHOR_INTERVAL_KM", 10)
	if err != nil {
		return nil, err
	}
	birdsPerPath, err := parsePositiveFloat("BIRDS_PER_PATH", 50000)
	if err != nil {
		return nil, err
	}
	workers, err := parsePositiveInt("FRAME_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	maxSessions, err := parsePositiveInt("MAX_SESSIONS", 1024)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		CaseStudyPath: os.Getenv("CASE_STUDY_PATH"),
		GridPath:      os.Getenv("GRID_PATH"),

		PipelineEnabled:    sharedcfg.EnvOrDefault("PIPELINE_ENABLED", "true") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "frame-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "path-frames"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "migration-paths"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		DataServiceURL:     os.Getenv("DATA_SERVICE_URL"),
		DataServiceTimeout: dataServiceTimeout,
		WindowCacheSize:    parseWindowCacheSize(),

		RadarAnchorRadiusKm: radius,
		AnchorIntervalKm:    interval,
		BirdsPerPath:        birdsPerPath,
		PathSeed:            sharedcfg.EnvOrDefault("PATH_SEED", "ENRAM"),
		FrameWorkers:        workers,
		MaxSessions:         maxSessions,
	}

	if cfg.CaseStudyPath == "" {
		return nil, errors.New("CASE_STUDY_PATH is required")
	}
	if cfg.DataServiceURL == "" && cfg.GridPath == "" {
		return nil, errors.New("GRID_PATH is required unless DATA_SERVICE_URL is set")
	}
	if cfg.PipelineEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func parseWindowCacheSize() int {
	if s := os.Getenv("WINDOW_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 64
}
