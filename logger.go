package rewardboard

import (
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger abstracts logging behaviour used across the project.
type Logger interface {
	Printf(format string, args ...any)
}

// LogConfig controls the process-wide log sink.
type LogConfig struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	Console    bool   `yaml:"console"`
}

var rootLogger atomic.Pointer[zap.Logger]

func init() {
	rootLogger.Store(zap.Must(newZapLogger(LogConfig{Level: "info", Console: true})))
}

// ConfigureLogging replaces the sink used by every Logger returned from NewLogger.
func ConfigureLogging(cfg LogConfig) error {
	logger, err := newZapLogger(cfg)
	if err != nil {
		return err
	}
	if prev := rootLogger.Swap(logger); prev != nil {
		_ = prev.Sync()
	}
	return nil
}

// SyncLogging flushes buffered entries.
func SyncLogging() {
	if logger := rootLogger.Load(); logger != nil {
		_ = logger.Sync()
	}
}

// NewLogger returns a logger that writes structured entries under the given tag.
func NewLogger(tag string) Logger {
	return &taggedLogger{tag: tag}
}

// NewDiscardLogger returns a logger that drops all log entries (useful in tests).
func NewDiscardLogger() Logger {
	return discardLogger{}
}

func newZapLogger(cfg LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	var cores []zapcore.Core
	if cfg.FileName != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FileName,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(encoder, sink, level))
	}
	if cfg.Console || cfg.FileName == "" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level))
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

type taggedLogger struct {
	tag string
}

func (l *taggedLogger) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	rootLogger.Load().Named(l.tag).Sugar().Infof(format, args...)
}

type discardLogger struct{}

func (discardLogger) Printf(string, ...any) {}
