// Package logging builds the harness loggers and manages per-run log
// directories.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLIConfig holds the log settings read from CLI flags.
type CLIConfig struct {
	Level  string // debug, info, warn, error
	Format string // console or json
}

// DefaultCLIConfig returns the settings used when no flags are set.
func DefaultCLIConfig() CLIConfig {
	return CLIConfig{Level: "info", Format: "console"}
}

// NewLogger creates a sugared zap logger from CLI config.
func NewLogger(cfg CLIConfig) (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	switch strings.ToLower(cfg.Format) {
	case "", "console":
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Encoding = "console"
	case "json":
		zcfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q (must be console or json)", cfg.Format)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.DisableStacktrace = true

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Sugar(), nil
}
