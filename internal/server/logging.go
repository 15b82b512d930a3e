package server

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// parseLogLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger writes text logs to stdout and, when file is set, JSON logs to a rotating file.
// The returned closer releases the file.
func newLogger(level, file string) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	console := slog.NewTextHandler(os.Stdout, opts)
	if file == "" {
		return slog.New(console), io.NopCloser(nil)
	}

	rotating := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	}
	return slog.New(slogmulti.Fanout(console, slog.NewJSONHandler(rotating, opts))), rotating
}
