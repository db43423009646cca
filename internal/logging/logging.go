// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zephyrtronium/rulebot/internal/config"
)

// New builds a logger. Unless debug mode is on or verbose is set, the result
// logs nothing, since the terminal belongs to the chat. verbose forces the
// debug level.
func New(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	if !cfg.DebugMode && !verbose {
		return zap.NewNop(), nil
	}
	zc := zap.NewProductionConfig()
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		level = l
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		zc.OutputPaths = []string{cfg.File}
	}
	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}
