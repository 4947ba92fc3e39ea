// Package core provides foundational types shared by every tbx2cmake
// component: the structured logger and build metadata.
package core

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with the small amount of configuration the CLI
// needs: a level, an output format and component scoping.
type Logger struct {
	logger *zap.Logger

	Level  string // minimum enabled logging level (debug, info, warn, error)
	Format string // output encoding (json, console)
}

func defaultConfig() *Logger {
	return &Logger{
		Level:  "info",
		Format: "console",
	}
}

// NewLogger creates a logger with the given configuration. Pass nil to use
// the defaults (info level, console output).
func NewLogger(cfg *Logger) (*Logger, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.DisableStacktrace = true
	if cfg.Format == "console" || cfg.Format == "" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	cfg.logger = logger
	return cfg, nil
}

// NewTestLogger returns a debug-level console logger writing to w, for
// asserting on log output in tests.
func NewTestLogger(w io.Writer) *Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(enc),
		zapcore.AddSync(&writerSync{w}),
		zapcore.DebugLevel,
	)
	return &Logger{logger: zap.New(core), Level: "debug", Format: "console"}
}

type writerSync struct{ io.Writer }

func (writerSync) Sync() error { return nil }

// WithComponent returns a logger scoped to a named subsystem.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		logger: l.logger.With(zap.String("component", component)),
		Level:  l.Level,
		Format: l.Format,
	}
}

// Shutdown flushes buffered log entries.
func (l *Logger) Shutdown() error {
	return l.logger.Sync()
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.logger.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.logger.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.logger.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.logger.Error(msg, fields...) }

// Field helpers so callers don't need to import zap directly.

func ZapError(err error) zap.Field                  { return zap.Error(err) }
func ZapString(key, val string) zap.Field           { return zap.String(key, val) }
func ZapStrings(key string, val []string) zap.Field { return zap.Strings(key, val) }
func ZapInt(key string, val int) zap.Field          { return zap.Int(key, val) }
