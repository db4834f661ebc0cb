package core

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKey struct{}

var (
	baseMu sync.RWMutex
	base   *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}
	base = l
}

// SetLogLevel changes the level of every logger derived from the base logger.
// Unknown names fall back to info.
func SetLogLevel(name string) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		lvl = zapcore.InfoLevel
	}
	level.SetLevel(lvl)
}

// SetLogger replaces the base logger. Used by tests to capture output.
func SetLogger(l *zap.Logger) {
	baseMu.Lock()
	defer baseMu.Unlock()
	base = l
}

// Logger returns the base logger.
func Logger() *zap.Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return base
}

// WithDefaultLogger returns a context carrying a logger tagged with reqId.
func WithDefaultLogger(parent context.Context, reqId string) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithValue(parent, loggerKey{}, Logger().Sugar().With("req_id", reqId))
}

// WithLogFields returns a context whose logger carries the extra key/value pairs.
func WithLogFields(ctx context.Context, kv ...any) context.Context {
	return context.WithValue(ctx, loggerKey{}, sugar(ctx).With(kv...))
}

func sugar(ctx context.Context) *zap.SugaredLogger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok {
			return l
		}
	}
	return Logger().Sugar()
}

func Infof(ctx context.Context, tpl string, args ...any) {
	sugar(ctx).Infof(tpl, args...)
}

func Warnf(ctx context.Context, tpl string, args ...any) {
	sugar(ctx).Warnf(tpl, args...)
}

func Errorf(ctx context.Context, tpl string, args ...any) {
	sugar(ctx).Errorf(tpl, args...)
}

func Debugf(ctx context.Context, tpl string, args ...any) {
	sugar(ctx).Debugf(tpl, args...)
}
