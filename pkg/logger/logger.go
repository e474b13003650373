package logger

import (
	"exam_tracker_backend/internal/config"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log stays a no-op logger until InitLogger runs, so packages can log from tests.
var Log = zap.NewNop()

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "time",
	LevelKey:       "level",
	NameKey:        "logger",
	CallerKey:      "caller",
	MessageKey:     "msg",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

func InitLogger(cfg *config.Config) {
	Log = New(cfg.Log, cfg.Server.Mode, zapcore.AddSync(os.Stdout))
}

// New builds the service logger: console output to console, JSON to the rotating
// log file when one is configured. Release mode samples repeated messages so a
// failing dependency cannot flood the logs.
func New(cfg config.LogConfig, mode string, console zapcore.WriteSyncer) *zap.Logger {
	level := Level(cfg.Level, mode)

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), console, level),
	}
	if cfg.File != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), fileWriter, level))
	}

	core := zapcore.NewTee(cores...)
	if mode == "release" {
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 10)
	}

	l := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	if cfg.Service != "" {
		l = l.With(zap.String("service", cfg.Service))
	}
	return l
}

// Level resolves the configured level name, falling back to debug in debug mode
// and info otherwise.
func Level(name, mode string) zapcore.Level {
	if name != "" {
		if l, err := zapcore.ParseLevel(name); err == nil {
			return l
		}
	}
	if mode == "debug" {
		return zap.DebugLevel
	}
	return zap.InfoLevel
}
