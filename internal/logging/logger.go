// Package logging builds the zap loggers used across nero. A root logger is
// built once from LoggingConfig; packages derive named category loggers from
// it with For, which yields a no-op logger when the category is disabled.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nero/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryEval       Category = "eval"       // Fixpoint evaluation
	CategoryStrata     Category = "strata"     // Stratification and dependency graphs
	CategoryPipeline   Category = "pipeline"   // Pipeline and database operations
	CategoryScript     Category = "script"     // Script parsing and formatting
	CategoryWatch      Category = "watch"      // File watcher
	CategoryCrosscheck Category = "crosscheck" // Mangle cross-check
)

// Categories lists every category.
var Categories = []Category{
	CategoryEval, CategoryStrata, CategoryPipeline,
	CategoryScript, CategoryWatch, CategoryCrosscheck,
}

// New builds the root logger. verbose forces debug level.
func New(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	if verbose || cfg.DebugMode {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// For returns the category logger derived from root, or a no-op logger when
// cfg disables the category.
func For(root *zap.Logger, cfg config.LoggingConfig, category Category) *zap.Logger {
	if root == nil || !cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return root.Named(string(category))
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
