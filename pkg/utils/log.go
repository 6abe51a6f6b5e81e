package utils

import (
	"flag"
	"log/slog"
	"os"
	"strings"
)

var (
	logFormatFlag = flag.String("log_format", "json", "Log output format: json/text.")
	logLevelFlag  = flag.String("log_level", "info", "Minimum log level: debug/info/warn/error.")
)

// parseLogLevel maps a flag value onto a slog level. Unknown values raise an
// invariant and fall back to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		RaiseInvariant("log", "unknown_log_level", "Got an unknown log level.", "level", level)
		return slog.LevelInfo
	}
}

// InitLogging installs the process-wide slog handler according to the logging
// flags. Library packages log through slog.Default and inherit this setup.
// Must be called after flag.Parse().
func InitLogging() {
	opts := &slog.HandlerOptions{Level: parseLogLevel(*logLevelFlag)}
	var handler slog.Handler
	switch format := strings.ToLower(*logFormatFlag); format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		RaiseInvariant("log", "unknown_log_format", "Got an unknown log format.", "format", format)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
