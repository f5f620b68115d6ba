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

	"github.com/couchcryptid/catchment-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/catchment-etl/internal/adapter/filesystem"
	httpadapter "github.com/couchcryptid/catchment-etl/internal/adapter/http"
	"github.com/couchcryptid/catchment-etl/internal/adapter/hydromodel"
	kafkaadapter "github.com/couchcryptid/catchment-etl/internal/adapter/kafka"
	"github.com/couchcryptid/catchment-etl/internal/catalog"
	"github.com/couchcryptid/catchment-etl/internal/config"
	"github.com/couchcryptid/catchment-etl/internal/domain"
	"github.com/couchcryptid/catchment-etl/internal/observability"
	"github.com/couchcryptid/catchment-etl/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	normalizer, err := domain.NewNormalizer(cfg.DataDir,
		domain.WithDateColumn(cfg.DateColumn),
		domain.WithColumnMappings(cfg.ColumnMappings),
		domain.WithWindow(cfg.Window),
	)
	if err != nil {
		logger.Error("invalid normalizer config", "error", err)
		return 1
	}
	source, err := filesystem.NewSource(cfg.DataDir, cfg.FilePattern)
	if err != nil {
		logger.Error("invalid file source", "error", err)
		return 1
	}
	cat, err := catalog.New(normalizer, source, cfg.CacheSize, metrics)
	if err != nil {
		logger.Error("catalog init failed", "error", err)
		return 1
	}
	executors, err := hydromodel.Executors(cfg.Models)
	if err != nil {
		logger.Error("invalid MODELS", "error", err)
		return 1
	}

	loader, closers, err := buildLoader(cfg, logger)
	if err != nil {
		logger.Error("sink init failed", "error", err)
		return 1
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Error("sink close error", "error", err)
			}
		}
	}()

	transformer := pipeline.NewTransformer(cat, executors, hydromodel.Params, cfg.SpinUpCycles, logger)
	p := pipeline.New(source, transformer, loader, logger, metrics, cfg.Concurrency)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunOnce {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
			return 1
		}
		logger.Info("batch complete", "catchments", len(p.Processed()))
		return 0
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, cat, cfg.SpinUpCycles, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Run the batch once; the service keeps serving the results afterwards.
	go func() {
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
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

	logger.Info("shutdown complete")
	return 0
}

type closer interface {
	Close() error
}

// buildLoader assembles the configured sinks.
func buildLoader(cfg *config.Config, logger *slog.Logger) (pipeline.Loader, []closer, error) {
	if cfg.HasSink(config.SinkNone) {
		return pipeline.NopLoader{}, nil, nil
	}

	var loaders pipeline.MultiLoader
	var closers []closer
	for _, sink := range cfg.Sinks {
		switch sink {
		case config.SinkCSV:
			w, err := csvfile.NewWriter(cfg.OutputDir)
			if err != nil {
				return nil, nil, err
			}
			loaders = append(loaders, w)
			logger.Info("csv sink enabled", "dir", cfg.OutputDir)
		case config.SinkKafka:
			w := kafkaadapter.NewWriter(cfg, logger)
			loaders = append(loaders, w)
			closers = append(closers, w)
			logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
		}
	}
	return loaders, closers, nil
}
