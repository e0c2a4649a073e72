package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/recera/kgview/cmd/kgview/internal/config"
	"github.com/recera/kgview/internal/cache"
	"github.com/recera/kgview/pkg/debug"
	"github.com/recera/kgview/pkg/engine"
	"github.com/recera/kgview/pkg/kg"
	"github.com/recera/kgview/pkg/layout"
	"github.com/recera/kgview/pkg/source"
	"github.com/recera/kgview/pkg/source/filesource"
	"github.com/recera/kgview/pkg/source/httpsource"
)

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = strings.ToLower(flags.logLevel)
	}
	switch {
	case flags.fixture != "":
		cfg.Source.Kind = "file"
		cfg.Source.File = flags.fixture
	case flags.apiURL != "":
		cfg.Source.Kind = "http"
		cfg.Source.HTTP.BaseURL = flags.apiURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger. An empty outputPath logs to stderr.
func newLogger(lc *config.LogConfig, outputPath string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if outputPath != "" {
		zc.OutputPaths = []string{outputPath}
		zc.ErrorOutputPaths = []string{outputPath}
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	debug.EnableLogging(logger)
	return logger, nil
}

// openSource builds the configured source. The file source is returned
// separately so callers can watch it.
func openSource(cfg *config.Config, logger *zap.Logger) (source.Source, *filesource.Source, error) {
	sc := cfg.Source
	switch sc.Kind {
	case "file":
		fs, err := filesource.Open(sc.File, &filesource.Options{Latency: sc.Latency, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		return fs, fs, nil

	case "http":
		h := sc.HTTP
		strategy, err := cache.ParseStrategy(h.CacheStrategy)
		if err != nil {
			return nil, nil, err
		}
		hc := httpsource.Config{
			BaseURL:       h.BaseURL,
			ObjectiveID:   h.ObjectiveID,
			Timeout:       h.Timeout,
			RateLimit:     h.RateLimit,
			Burst:         h.Burst,
			CacheTTL:      h.CacheTTL,
			CacheEntries:  h.CacheSize,
			CacheStrategy: strategy,
			Logger:        logger,
		}
		if b := h.Breaker; b != nil {
			hc.Breaker = httpsource.BreakerConfig{
				MaxRequests:      b.MaxRequests,
				Interval:         b.Interval,
				Timeout:          b.Timeout,
				FailureThreshold: b.FailureThreshold,
				MinRequests:      b.MinRequests,
			}
		}
		client, err := httpsource.New(hc)
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown source kind %q", sc.Kind)
}

// engineOptions maps the viewer section onto engine options.
func engineOptions(cfg *config.Config, logger *zap.Logger) engine.Options {
	v := cfg.Viewer
	return engine.Options{
		Width:        v.Width,
		Height:       v.Height,
		TickInterval: v.TickInterval(),
		Filter:       source.Filter{Limit: v.Limit},
		Depth:        v.Depth,
		Layout:       &layout.Options{Seed: v.Seed},
		Logger:       logger,
	}
}

// watchFixture reloads fs on change and calls refresh, until ctx is done.
func watchFixture(ctx context.Context, fs *filesource.Source, logger *zap.Logger, refresh func()) error {
	logger.Info("watching fixture", zap.String("path", fs.Path()))
	return fs.Watch(ctx, refresh)
}

// parseEntityType accepts an entity type flag in any case. Empty means no
// type filter.
func parseEntityType(s string) (kg.EntityType, error) {
	if s == "" {
		return "", nil
	}
	t := kg.EntityType(strings.ToUpper(s))
	if !t.Known() {
		return "", fmt.Errorf("unknown entity type %q", s)
	}
	return t, nil
}
