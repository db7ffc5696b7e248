package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"frizo/margin_engine/internal/api"
	"frizo/margin_engine/internal/asset"
	"frizo/margin_engine/internal/margin"
	"frizo/margin_engine/internal/metrics"
	"frizo/margin_engine/internal/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP margin validation service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, log, err := opts.load()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// Log startup information
	log.Info("Starting Margin Engine",
		zap.String("version", version.Short()),
		zap.String("environment", cfg.Environment),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
	)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	log.Info("asset catalog loaded", zap.Int("assets", catalog.Len()), zap.String("file", cfg.AssetsFile))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sink, err := auditPipeline(cfg, os.Stdout, m, log.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Warn("audit sink close", zap.Error(err))
		}
	}()

	validator := margin.NewValidator(catalog, sink)
	server := api.NewServer(catalog, validator, api.Options{
		AllowOrigins: cfg.CORS.AllowOrigins,
		Logger:       log.Logger,
		Metrics:      m,
		Gatherer:     reg,
	})

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go watchReload(ctx, catalog, cfg.AssetsFile, log.WithFields(map[string]any{
		"component": "catalog",
		"file":      cfg.AssetsFile,
	}).Logger)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if err := server.Run(ctx, addr); err != nil {
		log.Error("Application error", zap.Error(err))
		return err
	}

	log.Info("Margin Engine stopped")
	return nil
}

// watchReload swaps in the catalog file again on SIGHUP.
func watchReload(ctx context.Context, catalog *asset.Catalog, path string, log *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if path == "" {
				log.Warn("SIGHUP ignored: no asset catalog file configured")
				continue
			}
			if err := catalog.Reload(path); err != nil {
				log.Error("asset catalog reload failed, keeping current snapshot", zap.Error(err))
				continue
			}
			log.Info("asset catalog reloaded", zap.Int("assets", catalog.Len()))
		}
	}
}
