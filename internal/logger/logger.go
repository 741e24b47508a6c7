package logger

import (
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "clarte-be"

var global atomic.Pointer[zap.Logger]

// New builds a logger for env. Production emits JSON to stdout; anything
// else gets the colored development encoder. level overrides the default
// level when it parses.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config

	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.MessageKey = "message"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.InitialFields = map[string]interface{}{"service": serviceName}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level = strings.TrimSpace(level); level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}

	return cfg.Build(zap.AddCaller())
}

// Init installs the global logger for env, honouring LOG_LEVEL.
func Init(env string) {
	l, err := New(env, os.Getenv("LOG_LEVEL"))
	if err != nil {
		l, err = New(env, "")
	}
	if err != nil {
		panic(err)
	}
	global.Store(l)
}

// L returns the global logger.
func L() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	Init(os.Getenv("APP_ENV"))
	return global.Load()
}

// Replace swaps the global logger and returns a restore func.
func Replace(l *zap.Logger) func() {
	prev := global.Swap(l)
	return func() { global.Store(prev) }
}

func Sync() {
	if l := global.Load(); l != nil {
		_ = l.Sync()
	}
}
