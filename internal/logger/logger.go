// Package logger writes one JSON object per line to stdout with the fields
// every service log carries: timestamp, level, service, action, message and
// hostname. Extra key/value pairs follow as attributes.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var hostname, _ = os.Hostname()

var current atomic.Pointer[slog.Logger]

func init() {
	Setup(os.Stdout, "compliance", "info")
}

// Setup replaces the process logger. Tests point it at a buffer.
func Setup(w io.Writer, service, level string) {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	})
	current.Store(slog.New(h).With("service", service, "hostname", hostname))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func log(level slog.Level, action, message string, kv []any) {
	l := current.Load()
	if !l.Enabled(context.Background(), level) {
		return
	}
	l.Log(context.Background(), level, message, append([]any{"action", action}, kv...)...)
}

func Debug(action, message string, kv ...any) { log(slog.LevelDebug, action, message, kv) }
func Info(action, message string, kv ...any)  { log(slog.LevelInfo, action, message, kv) }
func Warn(action, message string, kv ...any)  { log(slog.LevelWarn, action, message, kv) }

// Error logs err under the "error" key.
func Error(action, message string, err error, kv ...any) {
	if err != nil {
		kv = append(kv, "error", err.Error())
	}
	log(slog.LevelError, action, message, kv)
}
