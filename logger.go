package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger interface - defines the common logging methods
type Logger interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)

	WithFields(fields map[string]any) Logger
	WithContext(ctx context.Context) Logger
	WithErr(err error) Logger
}

// NewLogger builds the logger selected by cfg. Output goes to out, which is
// stderr in production so stdout stays free for the stdio transport.
func NewLogger(cfg LogConfig, out io.Writer) (Logger, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "logrus":
		l := logrus.New()
		l.SetOutput(out)
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		l.SetLevel(level)
		if cfg.Format == "json" {
			l.SetFormatter(&logrus.JSONFormatter{})
		} else {
			l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		}
		return NewLogrusLogger(l), nil
	case "zap":
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		var enc zapcore.Encoder
		if cfg.Format == "json" {
			enc = zapcore.NewJSONEncoder(encCfg)
		} else {
			enc = zapcore.NewConsoleEncoder(encCfg)
		}
		core := zapcore.NewCore(enc, zapcore.AddSync(out), level)
		return NewZapLogger(zap.New(core)), nil
	default:
		return nil, fmt.Errorf("unsupported log backend: %s", cfg.Backend)
	}
}

// LogrusLogger implements the Logger interface using logrus
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger creates a new LogrusLogger with the provided logrus.Logger
func NewLogrusLogger(logger *logrus.Logger) Logger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusLogger{
		entry: logrus.NewEntry(logger),
	}
}

func (l *LogrusLogger) Debug(args ...any) { l.entry.Debug(args...) }
func (l *LogrusLogger) Info(args ...any)  { l.entry.Info(args...) }
func (l *LogrusLogger) Warn(args ...any)  { l.entry.Warn(args...) }
func (l *LogrusLogger) Error(args ...any) { l.entry.Error(args...) }

func (l *LogrusLogger) WithFields(fields map[string]any) Logger {
	return &LogrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *LogrusLogger) WithContext(ctx context.Context) Logger {
	return &LogrusLogger{entry: l.entry.WithContext(ctx)}
}

func (l *LogrusLogger) WithErr(err error) Logger {
	return &LogrusLogger{entry: l.entry.WithError(err)}
}

// ZapLogger implements the Logger interface using uber-go/zap
type ZapLogger struct {
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

// NewZapLogger creates a new ZapLogger with the provided zap.Logger
func NewZapLogger(logger *zap.Logger) Logger {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &ZapLogger{
		logger: logger,
		sugar:  logger.Sugar(),
	}
}

func (l *ZapLogger) Debug(args ...any) { l.sugar.Debug(args...) }
func (l *ZapLogger) Info(args ...any)  { l.sugar.Info(args...) }
func (l *ZapLogger) Warn(args ...any)  { l.sugar.Warn(args...) }
func (l *ZapLogger) Error(args ...any) { l.sugar.Error(args...) }

func (l *ZapLogger) WithFields(fields map[string]any) Logger {
	zapFields := make([]zapcore.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return NewZapLogger(l.logger.With(zapFields...))
}

// WithContext is a no-op for ZapLogger
func (l *ZapLogger) WithContext(ctx context.Context) Logger { return l }

func (l *ZapLogger) WithErr(err error) Logger {
	return NewZapLogger(l.logger.With(zap.Error(err)))
}

// NullLogger - a logger that does nothing
type NullLogger struct{}

// NewNullLogger creates a new NullLogger
func NewNullLogger() Logger {
	return &NullLogger{}
}

func (l *NullLogger) Debug(args ...any) {}
func (l *NullLogger) Info(args ...any)  {}
func (l *NullLogger) Warn(args ...any)  {}
func (l *NullLogger) Error(args ...any) {}

func (l *NullLogger) WithFields(fields map[string]any) Logger { return l }
func (l *NullLogger) WithContext(ctx context.Context) Logger  { return l }
func (l *NullLogger) WithErr(err error) Logger                { return l }
