// Package logger provides the structured logging interface used across the
// crawler. Adapted from the teacher's internal/logger package: same
// With*-style fluent interface over go.uber.org/zap, trimmed to the fields
// this service actually emits (domain and URL context, per spec.md
// section 7's "logged with domain and URL context").
package logger

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Interface is the logging contract every component depends on.
type Interface interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	With(fields ...any) Interface
	WithDomain(domain string) Interface
	WithURL(url string) Interface
	WithComponent(component string) Interface
	WithError(err error) Interface
}

// Config configures logger construction.
type Config struct {
	Level       string // debug, info, warn, error
	Encoding    string // json or console
	Development bool
}

// Logger implements Interface over a zap.Logger.
type Logger struct {
	z *zap.Logger
}

var logLevels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// New builds a Logger from Config.
func New(cfg Config) (Interface, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "json"
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Development {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
		}
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), levelFor(cfg.Level))

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	return &Logger{z: zap.New(core, opts...)}, nil
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() Interface {
	return &Logger{z: zap.NewNop()}
}

func levelFor(level string) zapcore.Level {
	if lvl, ok := logLevels[strings.ToLower(level)]; ok {
		return lvl
	}
	return zapcore.InfoLevel
}

func (l *Logger) Debug(msg string, fields ...any) { l.z.Debug(msg, toZapFields(fields)...) }
func (l *Logger) Info(msg string, fields ...any)  { l.z.Info(msg, toZapFields(fields)...) }
func (l *Logger) Warn(msg string, fields ...any)  { l.z.Warn(msg, toZapFields(fields)...) }
func (l *Logger) Error(msg string, fields ...any) { l.z.Error(msg, toZapFields(fields)...) }

func (l *Logger) With(fields ...any) Interface {
	return &Logger{z: l.z.With(toZapFields(fields)...)}
}

func (l *Logger) WithDomain(domain string) Interface    { return l.With("domain", domain) }
func (l *Logger) WithURL(url string) Interface          { return l.With("url", url) }
func (l *Logger) WithComponent(component string) Interface { return l.With("component", component) }
func (l *Logger) WithError(err error) Interface         { return l.With("error", err) }

func toZapFields(fields []any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	out := make([]zap.Field, 0, len(fields)/2+1)
	for i := 0; i < len(fields); i++ {
		if zf, ok := fields[i].(zap.Field); ok {
			out = append(out, zf)
			continue
		}
		key, ok := fields[i].(string)
		if !ok || i+1 >= len(fields) {
			continue
		}
		out = append(out, zap.Any(key, fields[i+1]))
		i++
	}
	return out
}
