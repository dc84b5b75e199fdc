package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"admissions/internal/advisor"
	"admissions/internal/blob"
	"admissions/internal/config"
	"admissions/internal/core"
	"admissions/internal/logging"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	registry   *prometheus.Registry
	store      core.PersistentStore
	service    *core.Service
	exporter   *core.Exporter
	summarizer core.Summarizer
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	logger := logging.Configure(cfg.Log.Level, logging.Format(cfg.Log.Format), logOut)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom, err := core.NewPrometheusRecorder(registry)
	if err != nil {
		return nil, err
	}
	metrics := core.MultiRecorder{prom, core.NewExpvarMetricsRecorder("")}

	storeCfg := cfg.StorageOptions()
	storeCfg.OnSaveError = func(error) {
		metrics.Observe(ctx, "persist", false, 0)
	}
	store, err := core.OpenPersistentStore(storeCfg, core.NewDefaultRulesEngine(), logging.Component(logger, "store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	svc := core.NewService(store,
		core.WithLogger(logging.Component(logger, "service")),
		core.WithMetrics(metrics),
		core.WithStandardFee(cfg.Fees.Standard),
	)

	archive, err := blob.Open(ctx, cfg.BlobOptions())
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("open archive: %w", err)
	}
	exporter := core.NewExporter(svc, archive, core.WithExportLogger(logging.Component(logger, "archive")))

	summarizer, err := advisor.Open(ctx, cfg.AdvisorOptions(), logging.Component(logger, "advisor"))
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("open advisor: %w", err)
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		store:      store,
		service:    svc,
		exporter:   exporter,
		summarizer: summarizer,
	}, nil
}

func (a *app) Close() error {
	return closeStore(a.store)
}

func closeStore(store core.PersistentStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
