package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"spamdetect/classifier"
	"spamdetect/config"
	"spamdetect/db"
	"spamdetect/detector"
	"spamdetect/logging"
	"spamdetect/monitoring"
	"spamdetect/progress"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	loader    *classifier.Loader
	scheduler *progress.Scheduler
	store     *db.Store
	metrics   *monitoring.Metrics
	svc       *detector.Service
}

// newApp loads configuration and builds the service. console receives log
// output; the TUI passes io.Discard because it owns the terminal.
func newApp(console io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.NewLogger(cfg.Log, console)
	if err != nil {
		return nil, err
	}
	if cfg.Source() != "" {
		logger.Debug("config loaded", zap.String("path", cfg.Source()))
	}

	loader, err := classifier.NewLoader(classifier.LoaderConfig{
		ModelType:      cfg.Artifacts.ModelType,
		ModelPath:      cfg.Artifacts.ModelPath,
		VectorizerPath: cfg.Artifacts.VectorizerPath,
		CacheSize:      cfg.Artifacts.CacheSize,
	}, logger.Named("loader"))
	if err != nil {
		return nil, err
	}

	scheduler := progress.NewScheduler(
		progress.WithSettle(cfg.Progress.FinalizeDelay),
		progress.WithRowYield(cfg.Progress.RowYield),
		progress.WithLogger(logger.Named("progress")),
	)

	a := &app{
		cfg:       cfg,
		log:       logger,
		loader:    loader,
		scheduler: scheduler,
		metrics:   monitoring.NewMetrics(),
	}

	opts := []detector.Option{
		detector.WithMetrics(a.metrics),
		detector.WithLogger(logger.Named("detector")),
		detector.WithModelType(cfg.Artifacts.ModelType),
	}
	if cfg.Database.Path != "" {
		if dir := filepath.Dir(cfg.Database.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		store, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open history database: %w", err)
		}
		a.store = store
		opts = append(opts, detector.WithHistory(store))
	}

	a.svc = detector.New(loader, classifier.NewEngine(), scheduler, opts...)
	return a, nil
}

// watch purges the artifact cache on file changes until ctx ends.
func (a *app) watch(ctx context.Context) {
	if !a.cfg.Artifacts.Watch {
		return
	}
	go func() {
		if err := a.loader.Watch(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("artifact watcher stopped", zap.Error(err))
		}
	}()
}

func (a *app) Close() {
	a.svc.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn("close history database", zap.Error(err))
	}
	_ = a.log.Sync()
}
