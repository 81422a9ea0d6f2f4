package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/stemsi/mocktest-backend/internal/config"
)

// ServiceName tags every line so logs from several binaries can share a sink.
const ServiceName = "mocktest-backend"

// Setup builds the process logger on stdout.
//   - level: trace, debug, info, warn, error, fatal or panic (info if unknown)
//   - format: "json" for production, "pretty" for human-readable dev output
func Setup(level, format string) zerolog.Logger {
	return New(os.Stdout, level, format)
}

// FromConfig builds the process logger. When LOG_FILE is set, JSON lines are
// also written to a size-rotated file regardless of the console format.
func FromConfig(cfg *config.Config) zerolog.Logger {
	if cfg.LogFile == "" {
		return Setup(cfg.LogLevel, cfg.LogFormat)
	}
	console := io.Writer(os.Stdout)
	if strings.EqualFold(cfg.LogFormat, "pretty") {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	file := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	}
	return New(zerolog.MultiLevelWriter(console, file), cfg.LogLevel, "json")
}

// New builds a logger writing to w. Tests pass io.Discard or a buffer.
func New(w io.Writer, level, format string) zerolog.Logger {
	writer := w
	if strings.EqualFold(format, "pretty") {
		writer = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	zerolog.SetGlobalLevel(ParseLevel(level))
	zerolog.DurationFieldUnit = time.Millisecond

	return zerolog.New(writer).
		With().
		Timestamp().
		Str("service", ServiceName).
		Caller().
		Logger()
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
