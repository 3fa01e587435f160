package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu       sync.RWMutex
	logger   *slog.Logger
	levelVar = new(slog.LevelVar)
)

func init() {
	Init(os.Stderr, false)
}

// Init installs a tint handler writing to w. Colors are only emitted when
// color is true; service logs usually go to journald and stay plain.
func Init(w io.Writer, color bool) {
	h := tint.NewHandler(w, &tint.Options{
		Level:      levelVar,
		TimeFormat: time.RFC3339Nano,
		NoColor:    !color,
	})
	mu.Lock()
	logger = slog.New(h)
	mu.Unlock()
}

func SetLevel(l Level) {
	levelVar.Set(toSlog(l))
}

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	current().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Info(msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Warn(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Error(msg, extended...)
}

// Logger exposes the underlying slog logger for libraries that want one.
func Logger() *slog.Logger {
	return current()
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func toSlog(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Redact keeps the first characters of a secret-ish value (session tokens)
// so log lines stay correlatable without leaking the whole value.
func Redact(s string) string {
	const keep = 8
	if len(s) <= keep {
		return s
	}
	return s[:keep] + "..."
}
