// Command tipaths serves bird-migration flow paths for one radar case study.
// It answers focus-window and frame queries over HTTP and, when the pipeline
// is enabled, consumes frame requests from Kafka and publishes frames.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/migration-paths/internal/adapter/dataservice"
	"github.com/couchcryptid/migration-paths/internal/adapter/file"
	httpadapter "github.com/couchcryptid/migration-paths/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/migration-paths/internal/adapter/kafka"
	"github.com/couchcryptid/migration-paths/internal/config"
	"github.com/couchcryptid/migration-paths/internal/flow"
	"github.com/couchcryptid/migration-paths/internal/observability"
	"github.com/couchcryptid/migration-paths/internal/pipeline"
	"github.com/couchcryptid/migration-paths/internal/store"
	"github.com/couchcryptid/migration-paths/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	cs, err := file.LoadCaseStudy(cfg.CaseStudyPath)
	if err != nil {
		logger.Error("failed to load case study", "error", err)
		os.Exit(1)
	}
	if err := cs.Validate(); err != nil {
		logger.Error("invalid case study", "path", cfg.CaseStudyPath, "error", err)
		os.Exit(1)
	}

	// Windows come from the local grid unless a remote data service is configured.
	var (
		windows view.WindowSource
		ready   sharedobs.ReadinessChecker
	)
	if cfg.DataServiceURL != "" {
		client := dataservice.NewClient(cfg.DataServiceURL, cs, cfg.DataServiceTimeout, metrics, logger)
		windows = dataservice.NewCachedSource(client, cfg.WindowCacheSize, metrics)
		logger.Info("remote window source enabled",
			"url", cfg.DataServiceURL,
			"cache_size", cfg.WindowCacheSize,
			"timeout", cfg.DataServiceTimeout,
		)
	} else {
		grid, err := file.LoadGrid(cfg.GridPath, logger)
		if err != nil {
			logger.Error("failed to load grid", "error", err)
			os.Exit(1)
		}
		local, err := store.New(cs, grid, logger)
		if err != nil {
			logger.Error("grid does not match case study", "error", err)
			os.Exit(1)
		}
		windows = local
		ready = local
	}

	settings := view.Settings{
		RadiusKm:     cfg.RadarAnchorRadiusKm,
		IntervalKm:   cfg.AnchorIntervalKm,
		BirdsPerPath: cfg.BirdsPerPath,
		Seed:         cfg.PathSeed,
		Workers:      cfg.FrameWorkers,
		IDW:          flow.DefaultIDW,
		MaxSessions:  cfg.MaxSessions,
	}
	registry := view.NewRegistry(cs, windows, settings, logger, metrics)

	var (
		p      *pipeline.Pipeline
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)
	if cfg.PipelineEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(registry, logger)
		p = pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
		ready = p
	} else {
		logger.Info("kafka pipeline disabled")
	}
	if ready == nil {
		ready = alwaysReady{}
	}

	api := httpadapter.API{
		CaseStudy:  cs,
		Windows:    windows,
		Frames:     registry,
		RadiusKm:   cfg.RadarAnchorRadiusKm,
		IntervalKm: cfg.AnchorIntervalKm,
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, api, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start frame pipeline.
	if p != nil {
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete", "sessions", registry.Len())
}

// alwaysReady is the readiness check when neither a local grid nor the
// pipeline gates traffic.
type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }
