// Package log is the application-wide structured logger. It keeps a small
// key/value call surface (Info("msg", "k", v)) and delegates to zap.
package log

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu      sync.RWMutex
	sugar   *zap.SugaredLogger
	atom    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	initOne sync.Once
)

// initLogger installs a console logger on stderr at INFO if Configure was never called.
func initLogger() {
	initOne.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if sugar == nil {
			sugar = build("console").Sugar()
		}
	})
}

func build(format string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = atom
	cfg.Encoding = "json"
	if format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	l, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Configure sets the minimum level and output format ("console" or "json").
// Unknown levels fall back to INFO.
func Configure(level, format string) {
	initOne.Do(func() {})
	SetLevel(ParseLevel(level))

	mu.Lock()
	defer mu.Unlock()
	if sugar != nil {
		_ = sugar.Sync()
	}
	sugar = build(strings.ToLower(format)).Sugar()
}

// Use replaces the underlying logger. Tests use it with zaptest/observer cores.
func Use(l *zap.Logger) {
	initOne.Do(func() {})
	mu.Lock()
	defer mu.Unlock()
	sugar = l.WithOptions(zap.AddCallerSkip(2)).Sugar()
}

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

func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		atom.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		atom.SetLevel(zapcore.WarnLevel)
	case LevelError:
		atom.SetLevel(zapcore.ErrorLevel)
	default:
		atom.SetLevel(zapcore.InfoLevel)
	}
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(LevelWarn, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(LevelError, msg, extended...)
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if sugar != nil {
		_ = sugar.Sync()
	}
}

func logWithLevel(level Level, msg string, kv ...any) {
	initLogger()

	mu.RLock()
	s := sugar
	mu.RUnlock()

	kv = evenKVs(kv)
	switch level {
	case LevelDebug:
		s.Debugw(msg, kv...)
	case LevelWarn:
		s.Warnw(msg, kv...)
	case LevelError:
		s.Errorw(msg, kv...)
	default:
		s.Infow(msg, kv...)
	}
}

// evenKVs drops a trailing key without value so zap doesn't log an "Ignored key" error.
func evenKVs(kv []any) []any {
	if len(kv)%2 == 1 {
		return kv[:len(kv)-1]
	}
	return kv
}
