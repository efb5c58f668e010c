package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L is the package level logger used across the application.
var L = slog.New(slog.NewTextHandler(os.Stdout, nil))

// Set replaces the default logger with the provided one.
func Set(l *slog.Logger) {
	if l != nil {
		L = l
	}
}

// New builds a logger writing to w. format is "json" or "text" and level one
// of debug, info, warn or error. Unknown values fall back to text and info.
func New(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Sugared returns a zap logger with the same format and level for the
// packages that log through zap.
func Sugared(format, level string) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if !strings.EqualFold(format, "json") {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
