package config

import (
	"io"
	"log/slog"
	"os"
)

// LogLevelEnv overrides the configured log level when set.
const LogLevelEnv = "ASSETPIPE_LOG_LEVEL"

// SlogLevel returns the slog level for l.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger. verbose forces debug; otherwise
// ASSETPIPE_LOG_LEVEL wins over the configured level.
func NewLogger(w io.Writer, level LogLevel, format LogFormat, verbose bool) *slog.Logger {
	if env := os.Getenv(LogLevelEnv); env != "" {
		level = NormalizeLogLevel(env)
	}
	if verbose {
		level = LogLevelDebug
	}
	opts := &slog.HandlerOptions{Level: level.SlogLevel()}
	if format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
