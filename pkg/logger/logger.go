// Package logger builds the application slog.Logger from configuration.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/soundprediction/recall/pkg/config"
	"github.com/soundprediction/recall/pkg/telemetry"
)

// New builds a logger per the log configuration. When a telemetry path is
// configured, error records are additionally captured into Parquet files;
// the returned flush func writes any buffered records and may be nil.
func New(cfg config.LogConfig, telemetryCfg config.TelemetryConfig) (*slog.Logger, func() error, error) {
	level := parseLevel(cfg.Level)

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	var flush func() error
	if telemetryCfg.ParquetPath != "" {
		ph, err := telemetry.NewParquetHandler(handler, telemetryCfg.ParquetPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to set up telemetry: %w", err)
		}
		handler = ph
		flush = ph.Flush
	}

	return slog.New(handler), flush, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
