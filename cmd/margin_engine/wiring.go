package main

import (
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"frizo/margin_engine/internal/asset"
	"frizo/margin_engine/internal/audit"
	"frizo/margin_engine/internal/config"
	"frizo/margin_engine/internal/metrics"
	"frizo/margin_engine/pkg/utils"
)

// loadCatalog the configured catalog file, or the built-in assets
func loadCatalog(cfg *config.Config) (*asset.Catalog, error) {
	if cfg.AssetsFile == "" {
		return asset.Default(), nil
	}
	if !utils.FileExists(cfg.AssetsFile) {
		return nil, errors.Errorf("asset catalog %s does not exist", cfg.AssetsFile)
	}

	assets, err := asset.LoadFile(cfg.AssetsFile)
	if err != nil {
		return nil, err
	}
	return asset.NewCatalog(assets)
}

// auditPipeline stamped fan-out: JSON lines on w, Kafka when brokers are
// configured, and the metrics counters when m is set.
func auditPipeline(cfg *config.Config, w io.Writer, m *metrics.Metrics, log *zap.Logger) (*audit.Stamper, error) {
	loc, err := cfg.Audit.Location()
	if err != nil {
		return nil, err
	}

	var opts []audit.LogSinkOption
	if m != nil {
		opts = append(opts, audit.WithDropHandler(m.AuditDrop))
	}

	sinks := audit.Multi{
		audit.NewLogSink(audit.NewLogger(zapcore.AddSync(w)), cfg.Audit.Buffer, opts...),
	}
	if len(cfg.Audit.KafkaBrokers) > 0 {
		sinks = append(sinks, audit.NewKafkaSink(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic, log))
	}
	if m != nil {
		sinks = append(sinks, m)
	}

	return audit.NewStamper(sinks, loc), nil
}
