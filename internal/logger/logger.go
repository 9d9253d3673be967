package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

var log *slog.Logger

// Init sets up a default logger at info level.
func Init() {
	InitWithLevel(slog.LevelInfo, "prod")
}

// InitWithLevel configures the package logger. The dev environment gets
// colourised text output, every other environment gets JSON on stdout.
func InitWithLevel(level slog.Level, environment string) *slog.Logger {
	var handler slog.Handler
	if environment == "dev" {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	log = New(handler)
	slog.SetDefault(log)
	return log
}

func New(h slog.Handler) *slog.Logger {
	return slog.New(h)
}

func NewJSONHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	return slog.NewJSONHandler(w, opts)
}

// ParseLogLevel maps LOG_LEVEL values to slog levels, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the package logger, initialising it on first use.
func Get() *slog.Logger {
	if log == nil {
		Init()
	}
	return log
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Infof(format string, v ...any) {
	Get().Info(fmt.Sprintf(format, v...))
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

func Errorf(format string, v ...any) {
	Get().Error(fmt.Sprintf(format, v...))
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

func Debugf(format string, v ...any) {
	Get().Debug(fmt.Sprintf(format, v...))
}

func Fatal(msg string, args ...any) {
	Get().Error(msg, args...)
	os.Exit(1)
}

func Fatalf(format string, v ...any) {
	Get().Error(fmt.Sprintf(format, v...))
	os.Exit(1)
}

func WithError(err error) *slog.Logger {
	return Get().With(slog.String("error", err.Error()))
}

func WithFields(fields map[string]any) *slog.Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return Get().With(args...)
}
