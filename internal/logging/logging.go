package logging

import (
	"fmt"

	"github.com/liliang-cn/ragdesk/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. When file is empty the logger writes to
// stderr, unless quiet is set, in which case it discards everything (the
// TUI owns the terminal).
func New(cfg config.LogConfig, quiet bool) (*zap.Logger, error) {
	if cfg.File == "" && quiet {
		return zap.NewNop(), nil
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.File != "" {
		zc.OutputPaths = []string{cfg.File}
		zc.ErrorOutputPaths = []string{cfg.File}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
