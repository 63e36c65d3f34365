package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"paperTrader/internal/ports"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Supported output formats.
const (
	FormatText    = "text"    // StdLogger lines
	FormatJSON    = "json"    // zerolog JSON
	FormatConsole = "console" // zerolog pretty console
)

// Config selects the logger implementation.
type Config struct {
	Level  string
	Format string
	Output io.Writer // Defaults to os.Stderr
}

// New builds the logger described by cfg.
func New(cfg Config) ports.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case FormatJSON:
		return NewZeroLogger(out, cfg.Level, false)
	case FormatConsole:
		return NewZeroLogger(out, cfg.Level, true)
	default:
		return NewStdLoggerTo(out, ParseLevel(cfg.Level))
	}
}

// ZeroLogger implements ports.Logger on top of zerolog.
type ZeroLogger struct {
	zl zerolog.Logger
}

// NewZeroLogger creates a structured logger. pretty switches to the console writer.
func NewZeroLogger(w io.Writer, level string, pretty bool) *ZeroLogger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	zl := zerolog.New(w).
		Level(zerologLevel(ParseLevel(level))).
		With().
		Timestamp().
		Logger()
	return &ZeroLogger{zl: zl}
}

func zerologLevel(l LogLevel) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (z *ZeroLogger) emit(ev *zerolog.Event, ctx context.Context, msg string, fields ...map[string]interface{}) {
	if merged := mergeFields(ctx, fields...); len(merged) > 0 {
		ev = ev.Fields(merged)
	}
	ev.Msg(msg)
}

// Debug logs a message at Debug level.
func (z *ZeroLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	z.emit(z.zl.Debug(), ctx, msg, fields...)
}

// Info logs a message at Info level.
func (z *ZeroLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	z.emit(z.zl.Info(), ctx, msg, fields...)
}

// Warn logs a message at Warning level.
func (z *ZeroLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	z.emit(z.zl.Warn(), ctx, msg, fields...)
}

// Error logs an error message at Error level.
func (z *ZeroLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	z.emit(z.zl.Error().Err(err), ctx, msg, fields...)
}

// mergeFields flattens the variadic field maps and adds the request ID when ctx carries one.
func mergeFields(ctx context.Context, fields ...map[string]interface{}) map[string]interface{} {
	var merged map[string]interface{}
	for _, f := range fields {
		for k, v := range f {
			if merged == nil {
				merged = make(map[string]interface{}, len(f)+1)
			}
			merged[k] = formatValue(v)
		}
	}
	if ctx != nil {
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			if merged == nil {
				merged = make(map[string]interface{}, 1)
			}
			merged["requestID"] = reqID
		}
	}
	return merged
}

func formatValue(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case time.Duration:
		return t.String()
	default:
		return v
	}
}
