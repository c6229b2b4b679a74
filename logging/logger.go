// Package logging builds the plugin's structured logger.
// Diagnostics go to stderr as JSON lines; the verbose flag lowers the level
// to debug and enables error stack traces.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns the plugin logger. With verbose set, debug logs and error
// stack traces are included; otherwise the logger stays at info level with
// stack traces suppressed.
func New(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		cfg.DisableStacktrace = true
	}

	logger, err := cfg.Build()
	if err != nil {
		// Building from a static config only fails on bad output paths;
		// fall back to a no-op logger rather than abort authentication.
		return zap.NewNop()
	}
	return logger
}
