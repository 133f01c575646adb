// Package logging builds the zap loggers. The terminal client logs to a file
// because the TUI owns the screen.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewFile returns a JSON logger appending to path at the given level.
func NewFile(path, level string) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return build(level, []string{path})
}

// NewStderr returns a JSON logger writing to stderr.
func NewStderr(level string) (*zap.Logger, error) {
	return build(level, []string{"stderr"})
}

func build(level string, outputs []string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = outputs
	cfg.ErrorOutputPaths = outputs
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
